package models

import "time"

// SensorReading показание обычного датчика (POST /generic-sensor)
type SensorReading struct {
	LineName    string   `json:"LineName"`
	MachineName string   `json:"MachineName"`
	SensorName  string   `json:"SensorName"`
	SensorValue *float64 `json:"SensorValue"`
	TimeStamp   int64    `json:"TimeStamp"` // Unix, миллисекунды
}

// VibrationReading показание трехосевого датчика вибрации (POST /vibration-sensor)
type VibrationReading struct {
	LineName    string   `json:"LineName"`
	MachineName string   `json:"MachineName"`
	SensorName  string   `json:"SensorName"`
	X           *float64 `json:"VibAccelTotRmsX"`
	Y           *float64 `json:"VibAccelTotRmsY"`
	Z           *float64 `json:"VibAccelTotRmsZ"`
	TimeStamp   int64    `json:"TimeStamp"`
}

// StateReading дискретное состояние машины (POST /generic-state)
type StateReading struct {
	LineName    string   `json:"LineName"`
	MachineName string   `json:"MachineName"`
	StateName   string   `json:"StateName"`
	StateValue  *float64 `json:"StateValue"`
	TimeStamp   int64    `json:"TimeStamp"`
}

// Measurement имена серий во временном хранилище
const (
	MeasurementSensorAnalytics = "SingleSensorAnalytics"
	MeasurementGenericSensor   = "GenericSensor"
	MeasurementVibration       = "VibSensor"
	MeasurementGenericState    = "GenericState"
)

// Record запись для отправки во временное хранилище
type Record struct {
	Measurement string                 `json:"measurement"`
	Tags        map[string]string      `json:"tags"`
	Fields      map[string]interface{} `json:"fields"`
	Time        time.Time              `json:"time"`
}

// SensorName возвращает имя датчика (или состояния) из тегов
func (r Record) SensorName() string {
	if name, ok := r.Tags["sensor_name"]; ok {
		return name
	}
	return r.Tags["state_name"]
}

// IsAnomaly true, если запись содержит флаг аномалии
func (r Record) IsAnomaly() bool {
	v, ok := r.Fields["anomaly"].(int)
	return ok && v == 1
}

// TimeFromMillis переводит Unix-время в миллисекундах в UTC
func TimeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
