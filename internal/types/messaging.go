package types

import "time"

// NotificationMessage is the envelope handed to the delivery channel (queue
// or push endpoint). JSON tags use snake_case to match downstream consumers.
type NotificationMessage struct {
	NotificationID string           `json:"notification_id"`
	CultivationID  string           `json:"cultivation_id"`
	RuleID         string           `json:"rule_id"`
	Type           NotificationType `json:"type"`
	Priority       Priority         `json:"priority"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	CreatedAt      time.Time        `json:"created_at"`

	// RetryCount is incremented each time maintenance re-submits the message.
	RetryCount int `json:"retry_count"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewNotificationMessage builds the delivery envelope for n.
func NewNotificationMessage(n *Notification) NotificationMessage {
	return NotificationMessage{
		NotificationID: n.ID,
		CultivationID:  n.CultivationID,
		RuleID:         n.RuleID,
		Type:           n.Type,
		Priority:       n.Priority,
		Title:          n.Title,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
		Metadata:       n.Metadata,
	}
}
