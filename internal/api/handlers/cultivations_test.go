package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"growcycle/internal/core"
	"growcycle/internal/genetics"
	"growcycle/internal/lifecycle"
	"growcycle/internal/types"
)

var cultivationStart = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

type mockCultivationReader struct {
	byID map[string]*types.Cultivation
	err  error
}

func (m *mockCultivationReader) GetByID(_ context.Context, id string) (*types.Cultivation, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.byID[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundCultivation, "cultivation not found", nil)
	}
	return c, nil
}

func newCultivationRouter(t *testing.T, store CultivationReader, now time.Time) http.Handler {
	t.Helper()
	resolver := genetics.NewResolver(nil)
	h := NewCultivationHandler(
		store,
		resolver,
		lifecycle.NewScorer(resolver),
		types.FixedClock{At: now},
		core.NewValidator(testLogger()),
		testLogger(),
	)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func autoCultivation() *types.Cultivation {
	return &types.Cultivation{
		ID:                 "c1",
		Name:               "Closet auto",
		StartDate:          cultivationStart,
		PlantType:          types.PlantAutoflowering,
		ExpectedYieldGrams: 100,
		Status:             types.CultivationActive,
	}
}

func getLifecycle(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, LifecycleResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var resp LifecycleResponse
	if rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return rec, resp
}

func TestHandleLifecycle_Success(t *testing.T) {
	store := &mockCultivationReader{byID: map[string]*types.Cultivation{"c1": autoCultivation()}}
	h := newCultivationRouter(t, store, cultivationStart.AddDate(0, 0, 10))

	rec, resp := getLifecycle(t, h, "/cultivations/c1/lifecycle")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if resp.Phase.Phase != types.PhaseSeedling {
		t.Errorf("phase = %q, want seedling", resp.Phase.Phase)
	}
	if resp.Phase.DaysSinceStart != 10 {
		t.Errorf("days since start = %d, want 10", resp.Phase.DaysSinceStart)
	}
	if resp.ProfileSource != genetics.SourcePlantType || resp.Customized {
		t.Errorf("profile source = %q customized=%v", resp.ProfileSource, resp.Customized)
	}
	// Germination 7 + seedling 7 + vegetative 25 + flowering 45.
	wantHarvest := cultivationStart.AddDate(0, 0, 84)
	if !resp.Harvest.EstimatedHarvestDate.Equal(wantHarvest) {
		t.Errorf("harvest = %v, want %v", resp.Harvest.EstimatedHarvestDate, wantHarvest)
	}
	if resp.Efficiency.TimeEfficiency == nil || *resp.Efficiency.TimeEfficiency != 100 {
		t.Errorf("time efficiency = %v, want 100", resp.Efficiency.TimeEfficiency)
	}
	if resp.Efficiency.YieldEfficiency != nil {
		t.Error("yield efficiency should be absent without an actual yield")
	}
	if resp.Warnings == nil {
		t.Error("warnings should serialize as an empty list")
	}
}

func TestHandleLifecycle_QueryOverrides(t *testing.T) {
	c := autoCultivation()
	actual := 60.0
	c.ActualYieldGrams = &actual
	store := &mockCultivationReader{byID: map[string]*types.Cultivation{"c1": c}}
	h := newCultivationRouter(t, store, cultivationStart)

	rec, resp := getLifecycle(t, h, "/cultivations/c1/lifecycle?expected_yield=120&now=2025-02-20T08:00:00Z")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if resp.Phase.DaysSinceStart != 50 {
		t.Errorf("days since start = %d, want 50", resp.Phase.DaysSinceStart)
	}
	if resp.Efficiency.YieldEfficiency == nil || *resp.Efficiency.YieldEfficiency != 50 {
		t.Errorf("yield efficiency = %v, want 50 (60g of 120g)", resp.Efficiency.YieldEfficiency)
	}
	if len(resp.Efficiency.Recommendations) == 0 {
		t.Error("a yield at half the expectation should produce a recommendation")
	}
}

func TestHandleLifecycle_Errors(t *testing.T) {
	store := &mockCultivationReader{byID: map[string]*types.Cultivation{"c1": autoCultivation()}}
	h := newCultivationRouter(t, store, cultivationStart)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   string
	}{
		{"unknown cultivation", "/cultivations/missing/lifecycle", http.StatusNotFound, "not_found_cultivation"},
		{"non-numeric yield", "/cultivations/c1/lifecycle?expected_yield=lots", http.StatusBadRequest, "validation_invalid_yield"},
		{"negative yield", "/cultivations/c1/lifecycle?expected_yield=-5", http.StatusBadRequest, "validation_invalid_request"},
		{"bad now", "/cultivations/c1/lifecycle?now=today", http.StatusBadRequest, "validation_invalid_reference_time"},
		{"bad now and negative yield", "/cultivations/c1/lifecycle?now=today&expected_yield=-5", http.StatusBadRequest, "validation_invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := getLifecycle(t, h, tt.target)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := errorCode(t, rec); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestHandleLifecycle_CustomizedProfile(t *testing.T) {
	c := autoCultivation()
	c.PlantType = types.PlantPhotoperiod
	veg := 40
	c.Overrides = &types.GeneticsOverrides{VegetativeDays: &veg}
	store := &mockCultivationReader{byID: map[string]*types.Cultivation{"c1": c}}
	h := newCultivationRouter(t, store, cultivationStart)

	rec, resp := getLifecycle(t, h, "/cultivations/c1/lifecycle")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !resp.Customized || resp.Profile.VegetativeDays != 40 {
		t.Errorf("customized = %v, vegetative = %d, want true/40", resp.Customized, resp.Profile.VegetativeDays)
	}
	if resp.Harvest.Confidence == types.ConfidenceHigh {
		t.Error("a customized photoperiod timeline should not report high confidence")
	}
}
