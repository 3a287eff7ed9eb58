package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costguardian_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "costguardian_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "costguardian_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Predictor metrics
	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costguardian_predictions_total",
			Help: "Total number of cost predictions",
		},
		[]string{"period", "kind"}, // kind: computed|fallback|error
	)

	PredictionPersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "costguardian_prediction_persist_failures_total",
			Help: "Stored prediction writes that failed and were dropped",
		},
	)

	PredictionConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "costguardian_prediction_confidence",
			Help:    "Confidence of computed predictions",
			Buckets: []float64{0.5, 0.6, 0.65, 0.7, 0.8, 0.9, 0.95},
		},
		[]string{"period"},
	)

	PredictionAccuracy = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "costguardian_prediction_accuracy_percent",
			Help:    "Audited prediction accuracy per subject",
			Buckets: []float64{10, 25, 50, 60, 70, 80, 90, 95, 100},
		},
	)

	// Optimizer metrics
	ModelSelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costguardian_model_selections_total",
			Help: "Top-ranked model returned by selection",
		},
		[]string{"task_type", "model"}, // model: none when nothing was eligible
	)

	PerformanceTracked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costguardian_performance_tracked_total",
			Help: "Model performance outcomes tracked",
		},
		[]string{"model", "status"}, // status: success|failed
	)

	PerformanceWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "costguardian_performance_write_failures_total",
			Help: "Performance record writes that failed and were dropped",
		},
	)

	RecommendationCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costguardian_recommendation_cache_total",
			Help: "Recommendation cache lookups",
		},
		[]string{"result"}, // result: hit|miss|error
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costguardian_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"route", "status"},
	)

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "costguardian_http_request_duration_seconds",
			Help:    "HTTP API request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costguardian_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "costguardian_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"database", "operation"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costguardian_kafka_messages_total",
			Help: "Total Kafka messages processed",
		},
		[]string{"topic", "status"}, // status: success|failed
	)
)

// Init registers all metrics with Prometheus
func Init() {
	// Worker metrics
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	// Predictor metrics
	prometheus.MustRegister(Predictions)
	prometheus.MustRegister(PredictionPersistFailures)
	prometheus.MustRegister(PredictionConfidence)
	prometheus.MustRegister(PredictionAccuracy)

	// Optimizer metrics
	prometheus.MustRegister(ModelSelections)
	prometheus.MustRegister(PerformanceTracked)
	prometheus.MustRegister(PerformanceWriteFailures)
	prometheus.MustRegister(RecommendationCache)

	// HTTP metrics
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPLatency)

	// Database metrics
	prometheus.MustRegister(DBQueries)
	prometheus.MustRegister(DBQueryDuration)

	// System metrics
	prometheus.MustRegister(KafkaMessages)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordPrediction records a prediction outcome
func RecordPrediction(period string, fallback bool, confidence float64, err error) {
	switch {
	case err != nil:
		Predictions.WithLabelValues(period, "error").Inc()
	case fallback:
		Predictions.WithLabelValues(period, "fallback").Inc()
	default:
		Predictions.WithLabelValues(period, "computed").Inc()
		PredictionConfidence.WithLabelValues(period).Observe(confidence)
	}
}

// RecordModelSelection records the top model picked for a task
func RecordModelSelection(taskType, model string) {
	if model == "" {
		model = "none"
	}
	ModelSelections.WithLabelValues(taskType, model).Inc()
}

// RecordPerformanceTracked records a tracked model outcome
func RecordPerformanceTracked(model string, success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	PerformanceTracked.WithLabelValues(model, status).Inc()
}

// RecordHTTPRequest records an API request
func RecordHTTPRequest(route string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(route, statusClass(status)).Inc()
	HTTPLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	DBQueries.WithLabelValues(database, operation, status).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordKafkaMessage records a consumed Kafka message
func RecordKafkaMessage(topic string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	KafkaMessages.WithLabelValues(topic, status).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
