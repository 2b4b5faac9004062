package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"telemetry-analytics/internal/metrics"
	"telemetry-analytics/internal/models"
)

// anomalyTTLFactor аномалии хранятся дольше обычных записей
const anomalyTTLFactor = 24

// RedisCache обертка для Redis клиента
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache создает новый Redis кэш
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func recordKey(sensor string, ts time.Time) string {
	return fmt.Sprintf("record:%s:%d", sensor, ts.UnixMilli())
}

func anomalyKey(sensor string, ts time.Time) string {
	return fmt.Sprintf("anomaly:%s:%d", sensor, ts.UnixMilli())
}

func anomalyListKey(sensor string) string {
	return fmt.Sprintf("anomaly_list:%s", sensor)
}

// Write сохраняет запись; аномалии дополнительно попадают в sorted set
func (r *RedisCache) Write(ctx context.Context, rec models.Record) error {
	if rec.IsAnomaly() {
		err := r.StoreAnomaly(ctx, rec)
		observe("store_anomaly", err)
		return err
	}
	err := r.StoreRecord(ctx, rec)
	observe("store_record", err)
	return err
}

// StoreRecord сохраняет запись с базовым TTL
func (r *RedisCache) StoreRecord(ctx context.Context, rec models.Record) error {
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return r.client.Set(ctx, recordKey(rec.SensorName(), rec.Time), jsonData, r.ttl).Err()
}

// StoreAnomaly сохраняет аномалию (с более длительным TTL)
func (r *RedisCache) StoreAnomaly(ctx context.Context, rec models.Record) error {
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal anomaly: %w", err)
	}

	sensor := rec.SensorName()
	anomalyTTL := r.ttl * anomalyTTLFactor
	key := anomalyKey(sensor, rec.Time)
	listKey := anomalyListKey(sensor)

	pipe := r.client.Pipeline()
	pipe.Set(ctx, recordKey(sensor, rec.Time), jsonData, r.ttl)
	pipe.Set(ctx, key, jsonData, anomalyTTL)
	pipe.ZAdd(ctx, listKey, redis.Z{Score: float64(rec.Time.UnixMilli()), Member: key})
	pipe.Expire(ctx, listKey, anomalyTTL)

	_, err = pipe.Exec(ctx)
	return err
}

// GetRecentAnomalies получает последние аномалии датчика, новые первыми
func (r *RedisCache) GetRecentAnomalies(ctx context.Context, sensor string, limit int) ([]string, error) {
	results, err := r.client.ZRevRange(ctx, anomalyListKey(sensor), 0, int64(limit-1)).Result()
	observe("get_anomalies", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get anomalies: %w", err)
	}

	return results, nil
}

// GetRecord читает сохраненную запись по ключу
func (r *RedisCache) GetRecord(ctx context.Context, key string) (models.Record, error) {
	var rec models.Record

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return rec, fmt.Errorf("failed to get record %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to unmarshal record %s: %w", key, err)
	}
	return rec, nil
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GetStats возвращает статистику Redis
func (r *RedisCache) GetStats() map[string]interface{} {
	stats := r.client.PoolStats()

	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}

func observe(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RedisOperations.WithLabelValues(operation, status).Inc()
}
