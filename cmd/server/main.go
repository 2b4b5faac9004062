package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"telemetry-analytics/internal/analytics"
	"telemetry-analytics/internal/cache"
	"telemetry-analytics/internal/config"
	"telemetry-analytics/internal/handlers"
	"telemetry-analytics/internal/metrics"
	"telemetry-analytics/internal/sink"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		// логгера еще нет
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	// Конфигурация из environment variables
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting telemetry analytics service",
		zap.Float64("z_score_threshold", cfg.ZScoreThreshold),
		zap.Int("model_window_size", cfg.ModelWindowSize),
		zap.Int("anomaly_list_size", cfg.AnomalyListSize))

	// Списки датчиков для z-score аналитики
	genericSensors := loadSensors(logger, cfg.GenericSensorsFile)
	vibrationSensors := loadSensors(logger, cfg.VibrationSensorsFile)

	registry, err := analytics.NewRegistry(analytics.RegistryConfig{
		GenericSensors:    genericSensors,
		VibrationSensors:  vibrationSensors,
		ModelSize:         cfg.ModelWindowSize,
		AnomalyWindowSize: cfg.AnomalyListSize,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build sensor registry", zap.Error(err))
	}

	threshold := analytics.NewThreshold(cfg.ZScoreThreshold)
	metrics.ZScoreThreshold.Set(cfg.ZScoreThreshold)

	// Хранилища
	var targets sink.Fanout
	checks := map[string]handlers.Pinger{}

	var influx *sink.Influx
	if cfg.InfluxEnabled() {
		logger.Info("configuring InfluxDB client", zap.String("url", cfg.InfluxURL()))
		influx = sink.NewInflux(sink.InfluxConfig{
			URL:            cfg.InfluxURL(),
			Token:          cfg.InfluxToken,
			Org:            cfg.InfluxOrg,
			Bucket:         cfg.InfluxBucket,
			BatchSize:      cfg.InfluxBatchSize,
			FlushInterval:  cfg.InfluxFlushInterval,
			JitterInterval: cfg.InfluxJitterInterval,
		}, logger)
		targets = append(targets, sink.Named{Name: "influxdb", Sink: influx})
		checks["influxdb"] = influx
	} else {
		logger.Warn("INFLUX_HOST is not set, records will not be persisted to InfluxDB")
	}

	var redisCache *cache.RedisCache
	if cfg.RedisEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisCache, err = cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RecordRetention)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))
		targets = append(targets, sink.Named{Name: "redis", Sink: redisCache})
		checks["redis"] = redisCache
	}

	async := sink.NewAsync(targets, cfg.SinkQueueSize, logger)
	async.Start(cfg.SinkWorkers)

	dispatcher := analytics.NewDispatcher(registry, threshold, async, logger)

	deps := handlers.Deps{
		Dispatcher: dispatcher,
		Registry:   registry,
		Threshold:  threshold,
		Checks:     checks,
		Queue:      async,
		Logger:     logger,
	}
	if redisCache != nil {
		deps.Anomalies = redisCache
		deps.RedisStats = redisCache
	}
	handler := handlers.NewHandler(deps)

	// Настройка HTTP router
	mux := http.NewServeMux()
	handler.Register(mux)

	// Prometheus metrics endpoint
	mux.Handle("GET /prometheus", promhttp.Handler())

	server := &http.Server{
		Addr: ":" + cfg.ServerPort,
		Handler: handlers.Chain(mux,
			handlers.RequestID,
			handlers.Recovery(logger),
			handlers.Logging(logger),
			handlers.CORS(cfg.CORSAllowedOrigins),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Периодическое обновление метрик
	stopMetrics := make(chan struct{})
	go updateMetrics(async, stopMetrics)

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	close(stopMetrics)
	async.Stop()
	if influx != nil {
		influx.Close()
	}
	if redisCache != nil {
		redisCache.Close()
	}

	logger.Info("server stopped gracefully")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func loadSensors(logger *zap.Logger, path string) []string {
	sensors, found, err := config.LoadSensorList(path)
	if err != nil {
		logger.Fatal("cannot load sensor list", zap.String("file", path), zap.Error(err))
	}
	if !found {
		logger.Warn("sensor list file not found, no sensors configured", zap.String("file", path))
	}
	return sensors
}

// updateMetrics периодически обновляет метрики
func updateMetrics(async *sink.Async, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			metrics.QueueSize.Set(float64(async.QueueSize()))
		}
	}
}
