package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration продолжительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ReadingsReceived полученные показания по типу
	ReadingsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readings_received_total",
			Help: "Total number of sensor readings received",
		},
		[]string{"kind"},
	)

	// RecordsEmitted записи, переданные в хранилище
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_emitted_total",
			Help: "Total number of records handed to the sink",
		},
		[]string{"measurement"},
	)

	// AnomaliesDetected обнаруженные аномалии
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Total number of anomalies detected",
		},
		[]string{"sensor_name", "kind"},
	)

	// CurrentZScore текущий z-score
	CurrentZScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "current_zscore",
			Help: "Current z-score per sensor",
		},
		[]string{"sensor_name"},
	)

	// ModelMean среднее окна модели
	ModelMean = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "model_mean",
			Help: "Baseline mean per sensor",
		},
		[]string{"sensor_name"},
	)

	// AnomalyRatio доля аномалий
	AnomalyRatio = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "anomaly_ratio",
			Help: "Fraction of anomalies in the anomaly window per sensor",
		},
		[]string{"sensor_name"},
	)

	// ModelCompleteness заполненность модели, %
	ModelCompleteness = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "model_completeness",
			Help: "Baseline fill level in percent per sensor",
		},
		[]string{"sensor_name"},
	)

	// ZScoreThreshold глобальный порог
	ZScoreThreshold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zscore_threshold",
			Help: "Process-wide z-score threshold",
		},
	)

	// QueueSize размер очереди записи
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sink_queue_size",
			Help: "Current size of the sink queue",
		},
	)

	// RecordsDropped записи, отброшенные при полной очереди
	RecordsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "records_dropped_total",
			Help: "Total number of records dropped because the sink queue was full",
		},
	)

	// SinkWrites записи в хранилища
	SinkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_writes_total",
			Help: "Total number of sink writes",
		},
		[]string{"sink", "status"},
	)

	// RedisOperations операции с Redis
	RedisOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)
)
