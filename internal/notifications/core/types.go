// Package core hands persisted notifications to the delivery channel and
// publishes operational metrics.
package core

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"growcycle/internal/types"
)

// Deliverer hands a notification to an external delivery channel (push,
// email or queue). Implementations must be safe for concurrent use.
type Deliverer interface {
	Deliver(ctx context.Context, msg types.NotificationMessage) error
}

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// NopDeliverer drops every message. Used when no delivery channel is configured.
type NopDeliverer struct{}

func (NopDeliverer) Deliver(context.Context, types.NotificationMessage) error { return nil }
