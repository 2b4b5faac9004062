package analytics

import (
	"math"
	"sync/atomic"
)

// Threshold глобальный порог z-score, общий для всех датчиков.
// Изменение действует со следующего события без перезапуска.
type Threshold struct {
	bits atomic.Uint64
}

// NewThreshold создает порог с начальным значением
func NewThreshold(initial float64) *Threshold {
	t := &Threshold{}
	t.Store(initial)
	return t
}

// Load возвращает текущее значение
func (t *Threshold) Load() float64 {
	return math.Float64frombits(t.bits.Load())
}

// Store сохраняет значение как есть; замену нуля выполняет Detector
func (t *Threshold) Store(v float64) {
	t.bits.Store(math.Float64bits(v))
}
