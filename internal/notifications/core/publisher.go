package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"growcycle/internal/types"
)

// maxSQSDelay is the SQS DelaySeconds ceiling.
const maxSQSDelay = 900

var _ Deliverer = (*NotificationPublisher)(nil)

// NotificationPublisher delivers notifications by publishing them to the
// delivery queue consumed by the push/email workers.
type NotificationPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewNotificationPublisher creates a publisher targeting queueURL.
func NewNotificationPublisher(client SQSSender, queueURL string, logger *slog.Logger) *NotificationPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Deliver publishes msg without delay.
func (p *NotificationPublisher) Deliver(ctx context.Context, msg types.NotificationMessage) error {
	return p.Publish(ctx, msg, 0)
}

// Publish serializes msg and sends it to the queue after delay. Delays are
// clamped to the SQS maximum of 900 seconds.
func (p *NotificationPublisher) Publish(ctx context.Context, msg types.NotificationMessage, delay time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notification publisher: failed to marshal message: %w", err)
	}

	delaySec := int32(delay.Seconds())
	if delaySec > maxSQSDelay {
		delaySec = maxSQSDelay
	}
	if delaySec < 0 {
		delaySec = 0
	}

	input := &sqs.SendMessageInput{
		QueueUrl:     aws.String(p.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySec,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"priority": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.Priority)),
			},
			"type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.Type)),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamDelivery,
			fmt.Sprintf("failed to send notification to %s", p.queueURL), err)
	}

	p.logger.Info("notification message published",
		"notification_id", msg.NotificationID,
		"cultivation_id", msg.CultivationID,
		"retry_count", msg.RetryCount,
		"delay_seconds", delaySec,
	)
	return nil
}
