package types

// Telemetry metric names for CloudWatch.
const (
	MetricJobRun             = "JobRun"
	MetricJobDuration        = "JobDuration"
	MetricNotificationIssued = "NotificationIssued"
	MetricEvaluationFailure  = "EvaluationFailure"
	MetricDeliveryFailed     = "DeliveryFailed"
	MetricAPILatency         = "APILatency"

	DimJob              = "Job"
	DimStatus           = "Status"
	DimNotificationType = "NotificationType"
	DimEndpoint         = "Endpoint"

	MetricNamespace = "GrowCycle"
)
