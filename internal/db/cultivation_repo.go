package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"growcycle/internal/types"
)

const cultivationColumns = `id, name, start_date, plant_type, COALESCE(genetics_name, ''),
	overrides, manual_transition, has_severe_problems, analysis,
	expected_yield_grams, actual_yield_grams, status`

// CultivationRepository reads cultivations and their events. The jobs never
// write cultivation state, so the repository is read-only.
type CultivationRepository struct {
	db DBTX
}

// NewCultivationRepository creates a new CultivationRepository backed by the
// given database connection (pool or transaction).
func NewCultivationRepository(db DBTX) *CultivationRepository {
	return &CultivationRepository{db: db}
}

// ListActive returns every active cultivation with its events attached,
// ordered by start date.
func (r *CultivationRepository) ListActive(ctx context.Context) ([]types.Cultivation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+cultivationColumns+`
		 FROM cultivations
		 WHERE status = 'active'
		 ORDER BY start_date, id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query active cultivations", err)
	}
	defer rows.Close()

	var (
		out   []types.Cultivation
		ids   []string
		index = make(map[string]int)
	)
	for rows.Next() {
		c, err := scanCultivation(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan cultivation", err)
		}
		index[c.ID] = len(out)
		ids = append(ids, c.ID)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating cultivations", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	events, err := r.eventsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if i, ok := index[ev.CultivationID]; ok {
			out[i].Events = append(out[i].Events, ev)
		}
	}
	return out, nil
}

// GetByID returns one cultivation with its events.
func (r *CultivationRepository) GetByID(ctx context.Context, id string) (*types.Cultivation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+cultivationColumns+`
		 FROM cultivations
		 WHERE id = $1`,
		id,
	)
	c, err := scanCultivation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundCultivation, "cultivation not found", err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get cultivation", err)
	}

	events, err := r.eventsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	c.Events = events
	return &c, nil
}

func (r *CultivationRepository) eventsFor(ctx context.Context, ids []string) ([]types.CultivationEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, cultivation_id, date, type, details
		 FROM cultivation_events
		 WHERE cultivation_id = ANY($1)
		 ORDER BY date, id`,
		ids,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query cultivation events", err)
	}
	defer rows.Close()

	var events []types.CultivationEvent
	for rows.Next() {
		var (
			ev      types.CultivationEvent
			evType  string
			details map[string]any
		)
		if err := rows.Scan(&ev.ID, &ev.CultivationID, &ev.Date, &evType, &details); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan cultivation event", err)
		}
		ev.Type = types.EventType(evType)
		ev.Details = details
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating cultivation events", err)
	}
	return events, nil
}

func scanCultivation(row pgx.Row) (types.Cultivation, error) {
	var (
		c         types.Cultivation
		plantType string
		status    string
	)
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.StartDate,
		&plantType,
		&c.GeneticsName,
		&c.Overrides,
		&c.ManualTransition,
		&c.HasSevereProblems,
		&c.Analysis,
		&c.ExpectedYieldGrams,
		&c.ActualYieldGrams,
		&status,
	)
	if err != nil {
		return types.Cultivation{}, err
	}
	c.PlantType = types.PlantType(plantType)
	c.Status = types.CultivationStatus(status)
	c.StartDate = c.StartDate.UTC()
	return c, nil
}
