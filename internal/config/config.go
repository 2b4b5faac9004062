package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config конфигурация приложения
type Config struct {
	ServerPort string
	LogLevel   string

	ZScoreThreshold      float64
	ModelWindowSize      int
	AnomalyListSize      int
	GenericSensorsFile   string
	VibrationSensorsFile string

	InfluxHost           string
	InfluxPort           string
	InfluxOrg            string
	InfluxToken          string
	InfluxBucket         string
	InfluxBatchSize      int
	InfluxFlushInterval  time.Duration
	InfluxJitterInterval time.Duration

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RecordRetention time.Duration

	SinkWorkers   int
	SinkQueueSize int

	CORSAllowedOrigins []string
}

// InfluxEnabled true, если задан хост InfluxDB
func (c Config) InfluxEnabled() bool { return c.InfluxHost != "" }

// InfluxURL адрес InfluxDB
func (c Config) InfluxURL() string {
	return "http://" + c.InfluxHost + ":" + c.InfluxPort
}

// RedisEnabled true, если задан адрес Redis
func (c Config) RedisEnabled() bool { return c.RedisAddr != "" }

// LoadDotEnv подгружает переменные из файлов .env, если они есть
func LoadDotEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// Load загружает конфигурацию из environment
func Load() (Config, error) {
	p := &parser{}

	cfg := Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		ZScoreThreshold:      p.getFloat("Z_SCORE_THRESHOLD", 2.0),
		ModelWindowSize:      p.getInt("MODEL_WINDOW_SIZE", 25),
		AnomalyListSize:      p.getInt("ANOMALY_LIST_SIZE", 25),
		GenericSensorsFile:   getEnv("GENERIC_SENSORS_FILE", "./analytics_generic_sensors.json"),
		VibrationSensorsFile: getEnv("VIBRATION_SENSORS_FILE", "./analytics_vibration_sensors.json"),

		InfluxHost:           getEnv("INFLUX_HOST", ""),
		InfluxPort:           getEnv("INFLUX_PORT", "8086"),
		InfluxOrg:            getEnv("INFLUX_ORG", ""),
		InfluxToken:          getEnv("INFLUX_TOKEN", ""),
		InfluxBucket:         getEnv("INFLUX_BUCKET_NAME", ""),
		InfluxBatchSize:      p.getInt("INFLUX_BATCH_SIZE", 500),
		InfluxFlushInterval:  time.Duration(p.getInt("INFLUX_FLUSH_INTERVAL", 1000)) * time.Millisecond,
		InfluxJitterInterval: time.Duration(p.getInt("INFLUX_JITTER_INTERVAL", 0)) * time.Millisecond,

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         p.getInt("REDIS_DB", 0),
		RecordRetention: time.Duration(p.getInt("RECORD_RETENTION_HOURS", 1)) * time.Hour,

		SinkWorkers:   p.getInt("SINK_WORKERS", 4),
		SinkQueueSize: p.getInt("SINK_QUEUE_SIZE", 1000),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "null")),
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.ModelWindowSize < 1 {
		errs = append(errs, fmt.Errorf("MODEL_WINDOW_SIZE must be at least 1, got %d", c.ModelWindowSize))
	}
	if c.AnomalyListSize < 1 {
		errs = append(errs, fmt.Errorf("ANOMALY_LIST_SIZE must be at least 1, got %d", c.AnomalyListSize))
	}
	if c.SinkWorkers < 1 {
		errs = append(errs, fmt.Errorf("SINK_WORKERS must be at least 1, got %d", c.SinkWorkers))
	}
	if c.SinkQueueSize < 1 {
		errs = append(errs, fmt.Errorf("SINK_QUEUE_SIZE must be at least 1, got %d", c.SinkQueueSize))
	}
	if c.InfluxEnabled() {
		if c.InfluxBatchSize < 1 {
			errs = append(errs, fmt.Errorf("INFLUX_BATCH_SIZE must be at least 1, got %d", c.InfluxBatchSize))
		}
		if c.InfluxBucket == "" || c.InfluxOrg == "" {
			errs = append(errs, errors.New("INFLUX_BUCKET_NAME and INFLUX_ORG are required when INFLUX_HOST is set"))
		}
	}
	return errors.Join(errs...)
}

// sensorList формат файлов со списками датчиков
type sensorList struct {
	Sensors []string `yaml:"sensors"`
}

// LoadSensorList читает список датчиков {"sensors": [...]}.
// JSON разбирается как YAML. Отсутствующий файл дает пустой список и found=false.
func LoadSensorList(path string) (sensors []string, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read sensor list %s: %w", path, err)
	}

	var list sensorList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, true, fmt.Errorf("parse sensor list %s: %w", path, err)
	}
	return list.Sensors, true, nil
}

// getEnv получает environment variable или возвращает default
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parser собирает ошибки разбора числовых переменных
type parser struct {
	errs []error
}

func (p *parser) getInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("env %s: %w", key, err))
		return defaultValue
	}
	return value
}

func (p *parser) getFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("env %s: %w", key, err))
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
