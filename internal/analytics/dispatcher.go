package analytics

import (
	"context"
	"math"

	"go.uber.org/zap"

	"telemetry-analytics/internal/metrics"
	"telemetry-analytics/internal/models"
)

// RecordSink принимает готовые записи. Доставка, повторы и батчинг
// остаются на стороне реализации; Write не должен блокироваться.
type RecordSink interface {
	Write(ctx context.Context, rec models.Record) error
}

// Dispatcher направляет показания в детекторы или напрямую в хранилище
type Dispatcher struct {
	registry  *Registry
	threshold *Threshold
	sink      RecordSink
	logger    *zap.Logger
}

// NewDispatcher создает диспетчер
func NewDispatcher(registry *Registry, threshold *Threshold, sink RecordSink, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry:  registry,
		threshold: threshold,
		sink:      sink,
		logger:    logger.Named("dispatcher"),
	}
}

// HandleSensor обрабатывает показание обычного датчика.
// Запись отправляется всегда: с аналитикой или без.
// SensorValue проверяется на уровне HTTP и здесь не может быть nil.
func (d *Dispatcher) HandleSensor(ctx context.Context, r models.SensorReading) (models.Record, bool) {
	metrics.ReadingsReceived.WithLabelValues(string(KindGeneric)).Inc()

	value := *r.SensorValue
	rec := models.Record{
		Tags: map[string]string{
			"line_name":    r.LineName,
			"machine_name": r.MachineName,
			"sensor_name":  r.SensorName,
		},
		Fields: map[string]interface{}{
			"value": round(value, 4),
		},
		Time: models.TimeFromMillis(r.TimeStamp),
	}

	sensor, ok := d.registry.Generic(r.SensorName)
	if !ok {
		rec.Measurement = models.MeasurementGenericSensor
		d.emit(ctx, rec)
		return rec, true
	}

	d.logger.Debug("sensor reading", zap.String("sensor_name", r.SensorName), zap.Float64("value", value))

	snap := sensor.Process(d.threshold.Load(), value)
	d.observe(KindGeneric, snap)

	rec.Measurement = models.MeasurementSensorAnalytics
	addAnalyticsFields(rec.Fields, snap)
	d.emit(ctx, rec)
	return rec, true
}

// HandleVibration обрабатывает показание трехосевого датчика.
// Для датчиков вне набора вибрации запись не создается.
func (d *Dispatcher) HandleVibration(ctx context.Context, r models.VibrationReading) (models.Record, bool) {
	metrics.ReadingsReceived.WithLabelValues(string(KindVibration)).Inc()

	x, y, z := *r.X, *r.Y, *r.Z
	d.logger.Debug("vibration reading",
		zap.String("sensor_name", r.SensorName),
		zap.Float64("x", x), zap.Float64("y", y), zap.Float64("z", z))

	sensor, ok := d.registry.Vibration(r.SensorName)
	if !ok {
		return models.Record{}, false
	}

	totalRms := TotalRMS(x, y, z)
	snap := sensor.Process(d.threshold.Load(), totalRms)
	d.observe(KindVibration, snap)

	rec := models.Record{
		Measurement: models.MeasurementVibration,
		Tags: map[string]string{
			"line_name":    r.LineName,
			"machine_name": r.MachineName,
			"sensor_name":  r.SensorName,
		},
		Fields: map[string]interface{}{
			"vib_accel_rms_x":     round(x, 4),
			"vib_accel_rms_y":     round(y, 4),
			"vib_accel_rms_z":     round(z, 4),
			"vib_accel_rms_total": round(totalRms, 4),
		},
		Time: models.TimeFromMillis(r.TimeStamp),
	}
	addAnalyticsFields(rec.Fields, snap)
	d.emit(ctx, rec)
	return rec, true
}

// HandleState сохраняет дискретное состояние машины без аналитики
func (d *Dispatcher) HandleState(ctx context.Context, r models.StateReading) (models.Record, bool) {
	metrics.ReadingsReceived.WithLabelValues("state").Inc()

	rec := models.Record{
		Measurement: models.MeasurementGenericState,
		Tags: map[string]string{
			"line_name":    r.LineName,
			"machine_name": r.MachineName,
			"state_name":   r.StateName,
		},
		Fields: map[string]interface{}{
			"value": int(*r.StateValue),
		},
		Time: models.TimeFromMillis(r.TimeStamp),
	}
	d.emit(ctx, rec)
	return rec, true
}

// TotalRMS суммарное RMS по трем осям, 5 знаков
func TotalRMS(x, y, z float64) float64 {
	return round(math.Sqrt(x*x+y*y+z*z), 5)
}

func addAnalyticsFields(fields map[string]interface{}, snap Snapshot) {
	anomaly := 0
	if snap.IsAnomaly {
		anomaly = 1
	}
	fields["anomaly"] = anomaly
	fields["anomaly_ratio"] = round(snap.AnomalyRatio, 4)
	fields["model_avg"] = round(snap.ModelMean, 4)
	fields["z_score"] = round(snap.ZScore, 4)
	fields["z_score_thresh"] = round(snap.ZScoreThreshold, 4)
}

// observe обновляет Prometheus метрики по датчику
func (d *Dispatcher) observe(kind Kind, snap Snapshot) {
	metrics.CurrentZScore.WithLabelValues(snap.Name).Set(snap.ZScore)
	metrics.ModelMean.WithLabelValues(snap.Name).Set(snap.ModelMean)
	metrics.AnomalyRatio.WithLabelValues(snap.Name).Set(snap.AnomalyRatio)
	metrics.ModelCompleteness.WithLabelValues(snap.Name).Set(float64(snap.ModelCompleteness))

	if snap.ModelComplete && snap.IsAnomaly {
		metrics.AnomaliesDetected.WithLabelValues(snap.Name, string(kind)).Inc()
		d.logger.Info("anomaly detected",
			zap.String("sensor_name", snap.Name),
			zap.Float64("z_score", snap.ZScore),
			zap.Float64("model_avg", snap.ModelMean),
			zap.Float64("threshold", snap.ZScoreThreshold))
	}
}

// emit передает запись в хранилище; ошибки не прерывают обработку
func (d *Dispatcher) emit(ctx context.Context, rec models.Record) {
	metrics.RecordsEmitted.WithLabelValues(rec.Measurement).Inc()
	if d.sink == nil {
		return
	}
	if err := d.sink.Write(ctx, rec); err != nil {
		d.logger.Warn("record not accepted by sink",
			zap.String("measurement", rec.Measurement),
			zap.String("sensor_name", rec.SensorName()),
			zap.Error(err))
	}
}
