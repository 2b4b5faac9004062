package sink

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"telemetry-analytics/internal/metrics"
	"telemetry-analytics/internal/models"
)

const deliverTimeout = 5 * time.Second

// Async развязывает обработку показаний и запись в хранилище:
// Write только кладет запись в очередь, доставку выполняют воркеры.
type Async struct {
	next     Sink
	queue    chan models.Record
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewAsync создает асинхронную обертку над next
func NewAsync(next Sink, queueSize int, logger *zap.Logger) *Async {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Async{
		next:     next,
		queue:    make(chan models.Record, queueSize),
		stopChan: make(chan struct{}),
		logger:   logger.Named("sink"),
	}
}

// Start запускает обработчики в goroutines
func (a *Async) Start(workers int) {
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.process()
	}
}

// Stop останавливает воркеров, оставшиеся записи доставляются
func (a *Async) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
	})
	a.wg.Wait()
}

// Write ставит запись в очередь без блокировки
func (a *Async) Write(_ context.Context, rec models.Record) error {
	select {
	case <-a.stopChan:
		return ErrClosed
	default:
	}

	select {
	case a.queue <- rec:
		return nil
	default:
		// Если канал полон, пропускаем запись
		metrics.RecordsDropped.Inc()
		return ErrQueueFull
	}
}

// QueueSize текущая длина очереди
func (a *Async) QueueSize() int {
	return len(a.queue)
}

// process обрабатывает записи из канала
func (a *Async) process() {
	defer a.wg.Done()

	for {
		select {
		case <-a.stopChan:
			a.drain()
			return
		case rec := <-a.queue:
			a.deliver(rec)
		}
	}
}

func (a *Async) drain() {
	for {
		select {
		case rec := <-a.queue:
			a.deliver(rec)
		default:
			return
		}
	}
}

func (a *Async) deliver(rec models.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	if err := a.next.Write(ctx, rec); err != nil {
		a.logger.Error("send data to storage failed",
			zap.String("measurement", rec.Measurement),
			zap.String("sensor_name", rec.SensorName()),
			zap.Error(err))
	}
}
