package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"telemetry-analytics/internal/models"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(context.Background(), mr.Addr(), "", 0, time.Hour)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func analyticsRecord(sensor string, ms int64, anomaly int) models.Record {
	return models.Record{
		Measurement: models.MeasurementSensorAnalytics,
		Tags:        map[string]string{"sensor_name": sensor, "line_name": "L1", "machine_name": "M1"},
		Fields: map[string]interface{}{
			"value":   42.0,
			"anomaly": anomaly,
		},
		Time: time.UnixMilli(ms).UTC(),
	}
}

func TestRedisCache_WriteNormalRecord(t *testing.T) {
	c, mr := newTestCache(t)

	if err := c.Write(context.Background(), analyticsRecord("temp-1", 1000, 0)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !mr.Exists("record:temp-1:1000") {
		t.Error("record key not stored")
	}
	if mr.Exists("anomaly_list:temp-1") {
		t.Error("normal record must not be listed as anomaly")
	}
	if ttl := mr.TTL("record:temp-1:1000"); ttl != time.Hour {
		t.Errorf("expected TTL 1h, got %v", ttl)
	}
}

func TestRedisCache_WriteAnomaly(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for _, ms := range []int64{1000, 3000, 2000} {
		if err := c.Write(ctx, analyticsRecord("vib-1", ms, 1)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	if ttl := mr.TTL("anomaly:vib-1:1000"); ttl != 24*time.Hour {
		t.Errorf("expected anomaly TTL 24h, got %v", ttl)
	}
	if !mr.Exists("record:vib-1:1000") {
		t.Error("anomalous record must also be stored as a record")
	}

	keys, err := c.GetRecentAnomalies(ctx, "vib-1", 2)
	if err != nil {
		t.Fatalf("GetRecentAnomalies: %v", err)
	}
	want := []string{"anomaly:vib-1:3000", "anomaly:vib-1:2000"}
	if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("expected %v, got %v", want, keys)
	}
}

func TestRedisCache_GetRecord(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Write(ctx, analyticsRecord("temp-1", 5000, 1)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rec, err := c.GetRecord(ctx, "anomaly:temp-1:5000")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec.Measurement != models.MeasurementSensorAnalytics || rec.SensorName() != "temp-1" {
		t.Errorf("unexpected record %+v", rec)
	}
	if !rec.Time.Equal(time.UnixMilli(5000)) {
		t.Errorf("unexpected time %v", rec.Time)
	}

	if _, err := c.GetRecord(ctx, "record:missing:1"); err == nil {
		t.Error("expected error for a missing key")
	}
}

func TestRedisCache_NoAnomalies(t *testing.T) {
	c, _ := newTestCache(t)

	keys, err := c.GetRecentAnomalies(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("GetRecentAnomalies: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no anomalies, got %v", keys)
	}
}

func TestRedisCache_PingAndStats(t *testing.T) {
	c, mr := newTestCache(t)

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if _, ok := c.GetStats()["total_conns"]; !ok {
		t.Error("stats missing total_conns")
	}

	mr.Close()
	if err := c.Ping(context.Background()); err == nil {
		t.Error("expected ping error after server shutdown")
	}
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedisCache(ctx, addr, "", 0, time.Hour); err == nil {
		t.Error("expected connection error")
	}
}
