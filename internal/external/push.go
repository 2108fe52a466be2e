package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"growcycle/internal/types"
)

// PushClient delivers notifications by POSTing the JSON envelope to a push
// gateway.
type PushClient struct {
	base     *BaseClient
	endpoint string
	token    types.SecretString
}

// NewPushClient creates a PushClient for endpoint. token, when set, is sent
// as a bearer credential.
func NewPushClient(base *BaseClient, endpoint string, token types.SecretString) *PushClient {
	return &PushClient{base: base, endpoint: endpoint, token: token}
}

// NewDefaultPushClient builds a PushClient with the default retry policy.
func NewDefaultPushClient(endpoint string, token types.SecretString, timeout time.Duration) *PushClient {
	base := NewBaseClient(&http.Client{Timeout: timeout}, "push-delivery", DefaultRetryPolicy(), "growcycle-jobs/1.0")
	return NewPushClient(base, endpoint, token)
}

// Deliver posts msg to the gateway. Any non-2xx response is an error.
func (c *PushClient) Deliver(ctx context.Context, msg types.NotificationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode push payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build push request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", msg.NotificationID)
	if !c.token.IsEmpty() {
		req.Header.Set("Authorization", "Bearer "+c.token.Unmask())
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.NewAppError(types.ErrCodeUpstreamDelivery,
			fmt.Sprintf("push gateway rejected notification with status %d", resp.StatusCode), nil)
	}
	return nil
}
