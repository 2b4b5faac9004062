package analytics

import (
	"math"

	"go.uber.org/zap"
)

const (
	// DefaultZScoreThreshold подставляется вместо нулевого порога
	DefaultZScoreThreshold = 2.0

	// stdDevEpsilon заменяет нулевое стандартное отклонение
	stdDevEpsilon = 0.001
)

// Detector потоковый z-score детектор аномалий для одного датчика.
//
// Пока окно модели не заполнено до modelSize, значения только накапливаются
// (состояние BUILDING). После заполнения каждое значение классифицируется;
// аномалии в окно модели не попадают.
//
// Detector не потокобезопасен: вызовы для одного датчика сериализует Sensor.
type Detector struct {
	name string

	modelWindow []float64
	modelSize   int

	anomalyWindow     []int
	anomalyWindowSize int
	anomalyRatio      float64

	isAnomaly  bool
	classified bool

	modelMean       float64
	modelStdDev     float64
	lastZScore      float64
	zScoreThreshold float64

	logger *zap.Logger
}

// Snapshot копия наблюдаемого состояния детектора
type Snapshot struct {
	Name              string  `json:"name"`
	IsAnomaly         bool    `json:"is_anomaly"`
	AnomalyRatio      float64 `json:"anomaly_ratio"`
	ModelMean         float64 `json:"model_mean"`
	ModelStdDev       float64 `json:"model_std_dev"`
	ZScore            float64 `json:"z_score"`
	ZScoreThreshold   float64 `json:"z_score_threshold"`
	ModelComplete     bool    `json:"model_complete"`
	ModelCompleteness int     `json:"model_completeness"`
	ModelLen          int     `json:"model_len"`
	AnomalyLen        int     `json:"anomaly_len"`
}

// NewDetector создает детектор с пустой моделью
func NewDetector(name string, modelSize, anomalyWindowSize int, logger *zap.Logger) *Detector {
	if modelSize < 1 {
		modelSize = 1
	}
	if anomalyWindowSize < 1 {
		anomalyWindowSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Detector{
		name:              name,
		modelWindow:       make([]float64, 0, modelSize),
		modelSize:         modelSize,
		anomalyWindow:     make([]int, 0, anomalyWindowSize),
		anomalyWindowSize: anomalyWindowSize,
		logger:            logger.With(zap.String("sensor_name", name)),
	}
}

// Name имя датчика
func (d *Detector) Name() string { return d.name }

// IsAnomaly результат классификации последнего значения
func (d *Detector) IsAnomaly() bool { return d.isAnomaly }

// AnomalyRatio доля аномалий в окне аномалий
func (d *Detector) AnomalyRatio() float64 { return d.anomalyRatio }

// ModelMean модуль среднего по окну модели
func (d *Detector) ModelMean() float64 { return d.modelMean }

// ModelStdDev стандартное отклонение окна модели
func (d *Detector) ModelStdDev() float64 { return d.modelStdDev }

// ZScore последний вычисленный z-score
func (d *Detector) ZScore() float64 { return d.lastZScore }

// Threshold текущий порог z-score
func (d *Detector) Threshold() float64 { return d.zScoreThreshold }

// IsModelComplete true, когда окно модели заполнено (состояние ACTIVE)
func (d *Detector) IsModelComplete() bool {
	return len(d.modelWindow) == d.modelSize
}

// ModelCompleteness процент заполнения окна модели
func (d *Detector) ModelCompleteness() int {
	return 100 * len(d.modelWindow) / d.modelSize
}

// SetThreshold задает порог z-score. Ноль заменяется значением по умолчанию.
func (d *Detector) SetThreshold(t float64) {
	if t == 0 {
		d.logger.Error("z-score threshold must be above zero, using default",
			zap.Float64("default", DefaultZScoreThreshold))
		d.zScoreThreshold = DefaultZScoreThreshold
		return
	}
	d.zScoreThreshold = t
}

// Evaluate добавляет значение в модель или классифицирует его
func (d *Detector) Evaluate(value float64) {
	if !d.IsModelComplete() {
		d.modelWindow = append(d.modelWindow, value)
		d.classified = false
		return
	}

	// Среднее и отклонение считаются только по неаномальным точкам
	d.modelMean = round(math.Abs(mean(d.modelWindow)), 3)
	d.modelStdDev = math.Abs(sampleStdDev(d.modelWindow))
	if d.modelStdDev == 0 {
		d.modelStdDev = stdDevEpsilon
	}
	d.lastZScore = round((math.Abs(value)-d.modelMean)/d.modelStdDev, 3)
	d.classified = true

	if math.Abs(d.lastZScore) > d.zScoreThreshold {
		d.isAnomaly = true
		return
	}

	// Скользящее окно: вытесняем самую старую точку
	d.isAnomaly = false
	copy(d.modelWindow, d.modelWindow[1:])
	d.modelWindow[len(d.modelWindow)-1] = value
}

// UpdateAnomalyRatio сдвигает окно аномалий после Evaluate.
// До первой классификации ничего не делает; доля пересчитывается
// только при заполненном окне.
func (d *Detector) UpdateAnomalyRatio() {
	if !d.IsModelComplete() || !d.classified {
		return
	}

	flag := 0
	if d.isAnomaly {
		flag = 1
	}

	if len(d.anomalyWindow) < d.anomalyWindowSize {
		d.anomalyWindow = append(d.anomalyWindow, flag)
	} else {
		copy(d.anomalyWindow, d.anomalyWindow[1:])
		d.anomalyWindow[len(d.anomalyWindow)-1] = flag
	}

	if len(d.anomalyWindow) == d.anomalyWindowSize {
		sum := 0
		for _, f := range d.anomalyWindow {
			sum += f
		}
		d.anomalyRatio = round(float64(sum)/float64(d.anomalyWindowSize), 3)
	}
}

// Reset возвращает детектор в исходное состояние.
// Имя, размеры окон и порог сохраняются.
func (d *Detector) Reset() {
	d.modelWindow = d.modelWindow[:0]
	d.anomalyWindow = d.anomalyWindow[:0]
	d.anomalyRatio = 0
	d.isAnomaly = false
	d.classified = false
	d.modelMean = 0
	d.modelStdDev = 0
	d.lastZScore = 0
}

// Snapshot возвращает копию состояния
func (d *Detector) Snapshot() Snapshot {
	return Snapshot{
		Name:              d.name,
		IsAnomaly:         d.isAnomaly,
		AnomalyRatio:      d.anomalyRatio,
		ModelMean:         d.modelMean,
		ModelStdDev:       d.modelStdDev,
		ZScore:            d.lastZScore,
		ZScoreThreshold:   d.zScoreThreshold,
		ModelComplete:     d.IsModelComplete(),
		ModelCompleteness: d.ModelCompleteness(),
		ModelLen:          len(d.modelWindow),
		AnomalyLen:        len(d.anomalyWindow),
	}
}

// modelValues копия окна модели (для тестов и диагностики)
func (d *Detector) modelValues() []float64 {
	out := make([]float64, len(d.modelWindow))
	copy(out, d.modelWindow)
	return out
}

// anomalyFlags копия окна аномалий
func (d *Detector) anomalyFlags() []int {
	out := make([]int, len(d.anomalyWindow))
	copy(out, d.anomalyWindow)
	return out
}
