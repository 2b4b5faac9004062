package sink

import (
	"context"
	"errors"
	"fmt"

	"telemetry-analytics/internal/metrics"
	"telemetry-analytics/internal/models"
)

var (
	// ErrQueueFull запись отброшена: очередь заполнена
	ErrQueueFull = errors.New("sink queue is full")

	// ErrClosed запись после остановки
	ErrClosed = errors.New("sink is closed")
)

// Sink получатель записей
type Sink interface {
	Write(ctx context.Context, rec models.Record) error
}

// Named хранилище с именем для метрик
type Named struct {
	Name string
	Sink Sink
}

// Fanout пишет запись во все хранилища по очереди
type Fanout []Named

// Write возвращает объединенную ошибку всех неудачных записей
func (f Fanout) Write(ctx context.Context, rec models.Record) error {
	var errs []error
	for _, n := range f {
		if err := n.Sink.Write(ctx, rec); err != nil {
			metrics.SinkWrites.WithLabelValues(n.Name, "error").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", n.Name, err))
			continue
		}
		metrics.SinkWrites.WithLabelValues(n.Name, "success").Inc()
	}
	return errors.Join(errs...)
}
