package sink

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"telemetry-analytics/internal/models"
)

// InfluxConfig параметры подключения к InfluxDB
type InfluxConfig struct {
	URL            string
	Token          string
	Org            string
	Bucket         string
	BatchSize      int
	FlushInterval  time.Duration
	JitterInterval time.Duration
}

// Influx пишет записи в InfluxDB через неблокирующий WriteAPI,
// который сам накапливает батчи и повторяет запись.
type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// NewInflux создает клиента InfluxDB
func NewInflux(cfg InfluxConfig, logger *zap.Logger) *Influx {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("influx")

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval.Milliseconds())).
		SetJitterInterval(uint(cfg.JitterInterval.Milliseconds())).
		SetRetryInterval(1000).
		SetPrecision(time.Millisecond).
		SetUseGZip(false)

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	// Ошибки асинхронной записи приходят отдельным каналом
	go func() {
		for err := range writeAPI.Errors() {
			logger.Error("send data to InfluxDB failed", zap.Error(err))
		}
	}()

	return &Influx{
		client:   client,
		writeAPI: writeAPI,
	}
}

// Write добавляет точку в текущий батч
func (i *Influx) Write(_ context.Context, rec models.Record) error {
	i.writeAPI.WritePoint(toPoint(rec))
	return nil
}

// Ping проверяет доступность InfluxDB
func (i *Influx) Ping(ctx context.Context) error {
	ok, err := i.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping influxdb: %w", err)
	}
	if !ok {
		return fmt.Errorf("ping influxdb: server not ready")
	}
	return nil
}

// Close сбрасывает буфер и закрывает клиента
func (i *Influx) Close() {
	i.writeAPI.Flush()
	i.client.Close()
}

func toPoint(rec models.Record) *write.Point {
	return influxdb2.NewPoint(rec.Measurement, rec.Tags, rec.Fields, rec.Time)
}
