package core

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"growcycle/internal/types"
)

// CloudWatchMetrics emits job, notification and request metrics to
// CloudWatch. Failures to publish are logged and swallowed.
//
// Metrics emitted:
//   - JobRun: Dims {Job, Status}, one per run
//   - JobDuration: Dims {Job}, milliseconds
//   - NotificationIssued: Dims {NotificationType}
//   - EvaluationFailure: Dims {Job}, count of failed cultivations
//   - DeliveryFailed: Dims {NotificationType}
//   - APILatency: Dims {Endpoint, Status}, milliseconds
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates metrics publishing to namespace. An empty
// namespace uses types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to put metric",
			"error", err.Error(),
			"metric", aws.ToString(datum.MetricName),
		)
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// RecordJobRun emits JobRun and JobDuration for one completed run.
func (m *CloudWatchMetrics) RecordJobRun(ctx context.Context, job, status string, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricJobRun),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimJob, job), dim(types.DimStatus, status)},
	})
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricJobDuration),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{dim(types.DimJob, job)},
	})
}

// RecordNotification counts an issued notification.
func (m *CloudWatchMetrics) RecordNotification(ctx context.Context, t types.NotificationType) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricNotificationIssued),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimNotificationType, string(t))},
	})
}

// RecordEvaluationFailure counts cultivations that failed evaluation in a run.
func (m *CloudWatchMetrics) RecordEvaluationFailure(ctx context.Context, job string, count int) {
	if count <= 0 {
		return
	}
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricEvaluationFailure),
		Value:      aws.Float64(float64(count)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimJob, job)},
	})
}

// RecordDeliveryFailure counts a failed hand-off to the delivery channel.
func (m *CloudWatchMetrics) RecordDeliveryFailure(ctx context.Context, t types.NotificationType) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryFailed),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimNotificationType, string(t))},
	})
}

// RecordRequest emits API latency for the HTTP metrics middleware.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint string, status int, duration time.Duration) {
	m.put(context.Background(), cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricAPILatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimEndpoint, method+" "+endpoint),
			dim(types.DimStatus, strconv.Itoa(status)),
		},
	})
}
