package analytics

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Kind тип датчика
type Kind string

const (
	KindGeneric   Kind = "generic"
	KindVibration Kind = "vibration"
)

// ParseKind разбирает тип датчика из строки
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindGeneric, KindVibration:
		return Kind(s), true
	default:
		return "", false
	}
}

// ErrOverlappingSensor имя датчика указано в обоих наборах
var ErrOverlappingSensor = errors.New("sensor configured as both generic and vibration")

// Sensor детектор одного датчика под собственной блокировкой.
// События одного датчика выполняются строго по очереди,
// разные датчики друг другу не мешают.
type Sensor struct {
	kind     Kind
	mu       sync.Mutex
	detector *Detector
}

// Name имя датчика
func (s *Sensor) Name() string { return s.detector.Name() }

// Kind тип датчика
func (s *Sensor) Kind() Kind { return s.kind }

// Process прогоняет значение через детектор и возвращает итоговое состояние
func (s *Sensor) Process(threshold, value float64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detector.SetThreshold(threshold)
	s.detector.Evaluate(value)
	s.detector.UpdateAnomalyRatio()
	return s.detector.Snapshot()
}

// Snapshot текущее состояние детектора
func (s *Sensor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detector.Snapshot()
}

// Reset административный сброс модели датчика
func (s *Sensor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detector.Reset()
}

// RegistryConfig параметры построения реестра
type RegistryConfig struct {
	GenericSensors    []string
	VibrationSensors  []string
	ModelSize         int
	AnomalyWindowSize int
}

// Registry реестр детекторов. Состав фиксируется при создании,
// поэтому карты читаются без блокировки.
type Registry struct {
	generic   map[string]*Sensor
	vibration map[string]*Sensor
}

// NewRegistry создает по детектору на каждое имя датчика
func NewRegistry(cfg RegistryConfig, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("registry")

	r := &Registry{
		generic:   make(map[string]*Sensor, len(cfg.GenericSensors)),
		vibration: make(map[string]*Sensor, len(cfg.VibrationSensors)),
	}

	for _, name := range cfg.GenericSensors {
		logger.Info("configuring z-score anomaly detection",
			zap.String("sensor_name", name), zap.String("kind", string(KindGeneric)))
		r.generic[name] = &Sensor{
			kind:     KindGeneric,
			detector: NewDetector(name, cfg.ModelSize, cfg.AnomalyWindowSize, logger),
		}
	}

	for _, name := range cfg.VibrationSensors {
		if _, ok := r.generic[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrOverlappingSensor, name)
		}
		logger.Info("configuring z-score anomaly detection",
			zap.String("sensor_name", name), zap.String("kind", string(KindVibration)))
		r.vibration[name] = &Sensor{
			kind:     KindVibration,
			detector: NewDetector(name, cfg.ModelSize, cfg.AnomalyWindowSize, logger),
		}
	}

	return r, nil
}

// Generic детектор обычного датчика
func (r *Registry) Generic(name string) (*Sensor, bool) {
	s, ok := r.generic[name]
	return s, ok
}

// Vibration детектор датчика вибрации
func (r *Registry) Vibration(name string) (*Sensor, bool) {
	s, ok := r.vibration[name]
	return s, ok
}

// IsGeneric проверка принадлежности набору обычных датчиков
func (r *Registry) IsGeneric(name string) bool {
	_, ok := r.generic[name]
	return ok
}

// IsVibration проверка принадлежности набору датчиков вибрации
func (r *Registry) IsVibration(name string) bool {
	_, ok := r.vibration[name]
	return ok
}

// Lookup ищет датчик по типу и имени
func (r *Registry) Lookup(kind Kind, name string) (*Sensor, bool) {
	switch kind {
	case KindGeneric:
		return r.Generic(name)
	case KindVibration:
		return r.Vibration(name)
	default:
		return nil, false
	}
}

// Sensors все датчики, отсортированные по типу и имени
func (r *Registry) Sensors() []*Sensor {
	out := make([]*Sensor, 0, len(r.generic)+len(r.vibration))
	for _, s := range r.generic {
		out = append(out, s)
	}
	for _, s := range r.vibration {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].kind != out[j].kind {
			return out[i].kind < out[j].kind
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

// GetStats возвращает статистику реестра
func (r *Registry) GetStats() map[string]interface{} {
	complete := 0
	for _, s := range r.Sensors() {
		if s.Snapshot().ModelComplete {
			complete++
		}
	}

	return map[string]interface{}{
		"generic_sensors":   len(r.generic),
		"vibration_sensors": len(r.vibration),
		"models_complete":   complete,
	}
}
