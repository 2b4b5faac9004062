package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"telemetry-analytics/internal/analytics"
	"telemetry-analytics/internal/metrics"
	"telemetry-analytics/internal/models"
)

const (
	defaultAnomalyLimit = 10
	pingTimeout         = 2 * time.Second
)

// AnomalyReader источник последних аномалий
type AnomalyReader interface {
	GetRecentAnomalies(ctx context.Context, sensor string, limit int) ([]string, error)
}

// Pinger проверка доступности зависимости
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps зависимости обработчика. Anomalies, Queue и RedisStats могут быть nil.
type Deps struct {
	Dispatcher *analytics.Dispatcher
	Registry   *analytics.Registry
	Threshold  *analytics.Threshold
	Anomalies  AnomalyReader
	Checks     map[string]Pinger
	Queue      interface{ QueueSize() int }
	RedisStats interface{ GetStats() map[string]interface{} }
	Logger     *zap.Logger
}

// Handler обработчик HTTP запросов
type Handler struct {
	Deps
}

// NewHandler создает новый обработчик
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Logger = deps.Logger.Named("http")
	return &Handler{Deps: deps}
}

// Register регистрирует маршруты
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /generic-sensor", h.instrument("/generic-sensor", h.SubmitSensor))
	mux.HandleFunc("POST /vibration-sensor", h.instrument("/vibration-sensor", h.SubmitVibration))
	mux.HandleFunc("POST /generic-state", h.instrument("/generic-state", h.SubmitState))

	mux.HandleFunc("GET /sensors", h.instrument("/sensors", h.ListSensors))
	mux.HandleFunc("GET /sensors/{kind}/{name}", h.instrument("/sensors/{kind}/{name}", h.GetSensor))
	mux.HandleFunc("POST /sensors/{kind}/{name}/reset", h.instrument("/sensors/{kind}/{name}/reset", h.ResetSensor))
	mux.HandleFunc("GET /threshold", h.instrument("/threshold", h.GetThreshold))
	mux.HandleFunc("PUT /threshold", h.instrument("/threshold", h.UpdateThreshold))
	mux.HandleFunc("GET /anomalies", h.instrument("/anomalies", h.GetAnomalies))

	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /stats", h.instrument("/stats", h.GetStats))
}

// instrument считает запросы и их длительность
func (h *Handler) instrument(endpoint string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		fn(sw, r)

		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(sw.status)).Inc()
	}
}

// SubmitSensor обрабатывает POST /generic-sensor
func (h *Handler) SubmitSensor(w http.ResponseWriter, r *http.Request) {
	var reading models.SensorReading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		h.badRequest(w, "invalid JSON", err)
		return
	}
	if reading.SensorName == "" || reading.SensorValue == nil {
		h.badRequest(w, "SensorName and SensorValue are required", nil)
		return
	}

	h.Dispatcher.HandleSensor(r.Context(), reading)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Sensor read successfully"})
}

// SubmitVibration обрабатывает POST /vibration-sensor
func (h *Handler) SubmitVibration(w http.ResponseWriter, r *http.Request) {
	var reading models.VibrationReading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		h.badRequest(w, "invalid JSON", err)
		return
	}
	if reading.SensorName == "" || reading.X == nil || reading.Y == nil || reading.Z == nil {
		h.badRequest(w, "SensorName, VibAccelTotRmsX, VibAccelTotRmsY and VibAccelTotRmsZ are required", nil)
		return
	}

	h.Dispatcher.HandleVibration(r.Context(), reading)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Sensor read successfully"})
}

// SubmitState обрабатывает POST /generic-state
func (h *Handler) SubmitState(w http.ResponseWriter, r *http.Request) {
	var reading models.StateReading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		h.badRequest(w, "invalid JSON", err)
		return
	}
	if reading.StateName == "" || reading.StateValue == nil {
		h.badRequest(w, "StateName and StateValue are required", nil)
		return
	}

	h.Dispatcher.HandleState(r.Context(), reading)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "State read successfully"})
}

type sensorView struct {
	Kind analytics.Kind `json:"kind"`
	analytics.Snapshot
}

// ListSensors обрабатывает GET /sensors
func (h *Handler) ListSensors(w http.ResponseWriter, r *http.Request) {
	sensors := h.Registry.Sensors()
	out := make([]sensorView, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, sensorView{Kind: s.Kind(), Snapshot: s.Snapshot()})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sensors": out,
		"count":   len(out),
	})
}

// GetSensor обрабатывает GET /sensors/{kind}/{name}
func (h *Handler) GetSensor(w http.ResponseWriter, r *http.Request) {
	sensor, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sensorView{Kind: sensor.Kind(), Snapshot: sensor.Snapshot()})
}

// ResetSensor обрабатывает POST /sensors/{kind}/{name}/reset
func (h *Handler) ResetSensor(w http.ResponseWriter, r *http.Request) {
	sensor, ok := h.lookup(w, r)
	if !ok {
		return
	}
	sensor.Reset()
	h.Logger.Info("detector reset", zap.String("sensor_name", sensor.Name()), zap.String("kind", string(sensor.Kind())))
	writeJSON(w, http.StatusOK, sensorView{Kind: sensor.Kind(), Snapshot: sensor.Snapshot()})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*analytics.Sensor, bool) {
	kind, ok := analytics.ParseKind(r.PathValue("kind"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be 'generic' or 'vibration'"})
		return nil, false
	}
	sensor, ok := h.Registry.Lookup(kind, r.PathValue("name"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "sensor not found"})
		return nil, false
	}
	return sensor, true
}

type thresholdBody struct {
	ZScoreThreshold *float64 `json:"z_score_threshold"`
}

// GetThreshold обрабатывает GET /threshold
func (h *Handler) GetThreshold(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"z_score_threshold": h.Threshold.Load()})
}

// UpdateThreshold обрабатывает PUT /threshold
func (h *Handler) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	var body thresholdBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.badRequest(w, "invalid JSON", err)
		return
	}
	if body.ZScoreThreshold == nil {
		h.badRequest(w, "z_score_threshold is required", nil)
		return
	}

	h.Threshold.Store(*body.ZScoreThreshold)
	metrics.ZScoreThreshold.Set(*body.ZScoreThreshold)
	h.Logger.Info("z-score threshold updated", zap.Float64("z_score_threshold", *body.ZScoreThreshold))

	writeJSON(w, http.StatusOK, map[string]float64{"z_score_threshold": h.Threshold.Load()})
}

// GetAnomalies обрабатывает GET /anomalies
func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	if h.Anomalies == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "anomaly cache is not configured"})
		return
	}

	sensorName := r.URL.Query().Get("sensor_name")
	if sensorName == "" {
		h.badRequest(w, "sensor_name parameter is required", nil)
		return
	}

	limit := defaultAnomalyLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.badRequest(w, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	keys, err := h.Anomalies.GetRecentAnomalies(r.Context(), sensorName, limit)
	if err != nil {
		h.Logger.Error("failed to retrieve anomalies", zap.String("sensor_name", sensorName), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to retrieve anomalies"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sensor_name":   sensorName,
		"anomaly_count": len(keys),
		"anomalies":     keys,
	})
}

// HealthCheck обрабатывает GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	deps := make(map[string]bool, len(h.Checks))

	for name, p := range h.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		err := p.Ping(ctx)
		cancel()

		deps[name] = err == nil
		if err != nil {
			h.Logger.Warn("dependency unavailable", zap.String("dependency", name), zap.Error(err))
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":       status,
		"dependencies": deps,
		"timestamp":    time.Now(),
	})
}

// GetStats обрабатывает GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"registry":          h.Registry.GetStats(),
		"z_score_threshold": h.Threshold.Load(),
		"timestamp":         time.Now(),
	}
	if h.Queue != nil {
		stats["queue_size"] = h.Queue.QueueSize()
	}
	if h.RedisStats != nil {
		stats["redis"] = h.RedisStats.GetStats()
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		h.Logger.Warn("bad request", zap.String("reason", msg), zap.Error(err))
	} else {
		h.Logger.Warn("bad request", zap.String("reason", msg))
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
