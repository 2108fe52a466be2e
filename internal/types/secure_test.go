package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const testSecret = "super-secret-trigger-12345"

func TestSecretString_NeverPrints(t *testing.T) {
	s := SecretString(testSecret)

	for _, out := range []string{s.String(), fmt.Sprintf("%s", s), fmt.Sprintf("%v", s)} {
		if strings.Contains(out, testSecret) {
			t.Errorf("formatted output leaked the secret: %q", out)
		}
	}
}

func TestSecretString_MarshalJSON(t *testing.T) {
	payload := struct {
		Secret SecretString `json:"secret"`
	}{Secret: SecretString(testSecret)}

	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(b), testSecret) {
		t.Errorf("JSON leaked the secret: %s", b)
	}
}

func TestSecretString_Slog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("config", "secret", SecretString(testSecret))

	if strings.Contains(buf.String(), testSecret) {
		t.Errorf("slog output leaked the secret: %s", buf.String())
	}
}

func TestSecretString_Matches(t *testing.T) {
	s := SecretString(testSecret)

	if !s.Matches(testSecret) {
		t.Error("expected exact value to match")
	}
	if s.Matches(testSecret + "x") {
		t.Error("expected different value not to match")
	}
	if s.Matches("") {
		t.Error("empty candidate must not match")
	}
	if SecretString("").Matches("") {
		t.Error("empty secret must never match")
	}
	if s.Unmask() != testSecret {
		t.Errorf("Unmask() = %q", s.Unmask())
	}
}
