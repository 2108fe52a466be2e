package db

import (
	"context"
	"time"

	"growcycle/internal/types"
)

// NotificationRepository provides data access for the notifications table.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new NotificationRepository backed by the
// given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification. The caller sets the ID; CreatedAt falls back
// to the database clock when zero.
func (r *NotificationRepository) Create(ctx context.Context, n *types.Notification) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO notifications
		 (id, cultivation_id, rule_id, type, priority, title, message,
		  metadata, created_at, is_read)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()), false)
		 RETURNING created_at`,
		n.ID,
		n.CultivationID,
		n.RuleID,
		string(n.Type),
		string(n.Priority),
		n.Title,
		n.Message,
		n.Metadata,
		nilIfZeroTime(n.CreatedAt),
	)
	if err := row.Scan(&n.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create notification", err)
	}
	return nil
}

// ListUndelivered returns notifications created before createdBefore that
// were never handed to the delivery channel, oldest first.
func (r *NotificationRepository) ListUndelivered(ctx context.Context, createdBefore time.Time, limit int) ([]types.Notification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, cultivation_id, rule_id, type, priority, title, message,
		        metadata, created_at, is_read
		 FROM notifications
		 WHERE delivered_at IS NULL AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2`,
		createdBefore,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query undelivered notifications", err)
	}
	defer rows.Close()

	var out []types.Notification
	for rows.Next() {
		var (
			n        types.Notification
			nType    string
			priority string
			metadata map[string]any
		)
		if err := rows.Scan(
			&n.ID,
			&n.CultivationID,
			&n.RuleID,
			&nType,
			&priority,
			&n.Title,
			&n.Message,
			&metadata,
			&n.CreatedAt,
			&n.IsRead,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification", err)
		}
		n.Type = types.NotificationType(nType)
		n.Priority = types.Priority(priority)
		n.Metadata = metadata
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating notifications", err)
	}
	return out, nil
}

// MarkDelivered records the delivery hand-off time.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET delivered_at = $2 WHERE id = $1`,
		id,
		at,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark notification delivered", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}

// DeleteReadBefore removes read notifications created before cutoff and
// returns the number of rows deleted.
func (r *NotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notifications WHERE is_read = true AND created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete read notifications", err)
	}
	return int(tag.RowsAffected()), nil
}
