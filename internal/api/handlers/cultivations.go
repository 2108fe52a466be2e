package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"growcycle/internal/core"
	"growcycle/internal/genetics"
	"growcycle/internal/lifecycle"
	"growcycle/internal/types"
)

// CultivationReader loads a single cultivation with its events.
type CultivationReader interface {
	GetByID(ctx context.Context, id string) (*types.Cultivation, error)
}

// ProfileResolver resolves the growth profile of a cultivation.
type ProfileResolver interface {
	Resolve(plantType types.PlantType, geneticsName string, overrides *types.GeneticsOverrides) genetics.Resolution
}

// CultivationHandler serves read-only lifecycle views of a cultivation.
type CultivationHandler struct {
	store     CultivationReader
	resolver  ProfileResolver
	scorer    *lifecycle.Scorer
	clock     types.Clock
	validator *core.Validator
	logger    *slog.Logger
}

// NewCultivationHandler creates a CultivationHandler.
func NewCultivationHandler(
	store CultivationReader,
	resolver ProfileResolver,
	scorer *lifecycle.Scorer,
	clock types.Clock,
	val *core.Validator,
	logger *slog.Logger,
) *CultivationHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CultivationHandler{
		store:     store,
		resolver:  resolver,
		scorer:    scorer,
		clock:     clock,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the cultivation endpoints.
func (h *CultivationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/cultivations/{id}/lifecycle", h.HandleLifecycle)
}

type lifecycleQuery struct {
	ExpectedYield float64 `json:"expected_yield" validate:"gte=0,lte=1000000"`
	Now           string  `json:"now" validate:"omitempty,rfc3339"`
}

// LifecycleResponse is the body of GET /cultivations/{id}/lifecycle.
type LifecycleResponse struct {
	CultivationID string                      `json:"cultivation_id"`
	Phase         lifecycle.PhaseInfo         `json:"phase"`
	Boundaries    lifecycle.Boundaries        `json:"boundaries"`
	Harvest       lifecycle.HarvestPrediction `json:"harvest"`
	Efficiency    lifecycle.Efficiency        `json:"efficiency"`
	Profile       genetics.Profile            `json:"profile"`
	ProfileSource genetics.Source             `json:"profile_source"`
	Customized    bool                        `json:"customized"`
	Warnings      []string                    `json:"warnings"`
	ComputedAt    time.Time                   `json:"computed_at"`
}

// HandleLifecycle handles GET /cultivations/{id}/lifecycle.
//
// Query parameters:
//   - expected_yield: grams, overrides the stored expectation for scoring
//   - now: RFC 3339 reference time, defaults to the current time
func (h *CultivationHandler) HandleLifecycle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	var (
		query      = lifecycleQuery{Now: q.Get("now")}
		yieldGiven bool
	)
	if raw := q.Get("expected_yield"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidYield,
				"expected_yield must be a number", err))
			return
		}
		query.ExpectedYield = v
		yieldGiven = true
	}
	if err := h.validator.ValidateStruct(query); err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.clock.Now()
	if query.Now != "" {
		parsed, _ := time.Parse(time.RFC3339, query.Now)
		now = parsed.UTC()
	}

	c, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !yieldGiven {
		query.ExpectedYield = c.ExpectedYieldGrams
	}

	res := h.resolver.Resolve(c.PlantType, c.GeneticsName, c.Overrides)
	phase := lifecycle.ComputePhase(c.StartDate, now, res.Profile)

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	} else {
		types.LoggerFromContext(r.Context(), h.logger).Debug("profile resolved with warnings",
			slog.String("cultivation_id", c.ID),
			slog.Int("warnings", len(warnings)),
		)
	}

	core.JSON(w, r, http.StatusOK, LifecycleResponse{
		CultivationID: c.ID,
		Phase:         phase,
		Boundaries:    lifecycle.PhaseBoundaries(res.Profile),
		Harvest:       lifecycle.PredictHarvest(c.StartDate, res.Profile, res.Customized),
		Efficiency:    h.scorer.Score(phase, res.Profile, query.ExpectedYield, c.ActualYieldGrams),
		Profile:       res.Profile,
		ProfileSource: res.Source,
		Customized:    res.Customized,
		Warnings:      warnings,
		ComputedAt:    now,
	})
}
