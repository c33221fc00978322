package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host

	"github.com/joho/godotenv"
)

// Supported database drivers
const (
	DriverSQLServer = "sqlserver"
	DriverPostgres  = "postgres"
)

type Config struct {
	Database DatabaseConfig
	Model    ModelConfig
	Job      JobConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Influx   InfluxConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

type DatabaseConfig struct {
	Driver   string
	Server   string
	Port     int
	Database string
	User     string
	Password string
	Encrypt  string // sqlserver only
	SSLMode  string // postgres only
}

// ConnectionString builds the DSN for the configured driver
func (d DatabaseConfig) ConnectionString() string {
	switch d.Driver {
	case DriverPostgres:
		query := url.Values{}
		if d.SSLMode != "" {
			query.Set("sslmode", d.SSLMode)
		}
		u := &url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     fmt.Sprintf("%s:%d", d.Server, d.Port),
			Path:     "/" + d.Database,
			RawQuery: query.Encode(),
		}
		return u.String()
	default:
		query := url.Values{}
		query.Set("database", d.Database)
		if d.Encrypt != "" {
			query.Set("encrypt", d.Encrypt)
		}
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(d.User, d.Password),
			Host:     fmt.Sprintf("%s:%d", d.Server, d.Port),
			RawQuery: query.Encode(),
		}
		return u.String()
	}
}

type ModelConfig struct {
	ClassifierPath string
	EncoderPath    string
}

type JobConfig struct {
	Timezone     string
	GasThreshold int
	Interval     time.Duration
	RunTimeout   time.Duration // 0 leaves blocking behaviour to the driver
}

// Location resolves the configured timezone
func (j JobConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(j.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid PREDICTION_TIMEZONE %q: %w", j.Timezone, err)
	}
	return loc, nil
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type KafkaConfig struct {
	Brokers          []string
	TopicPredictions string
}

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type MetricsConfig struct {
	Addr string
}

type LoggingConfig struct {
	Level  string
	Format string // json or console
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	driver := strings.ToLower(getEnv("SQL_DRIVER", DriverSQLServer))
	defaultPort := 1433
	if driver == DriverPostgres {
		defaultPort = 5432
	}

	config := &Config{
		Database: DatabaseConfig{
			Driver:   driver,
			Server:   getEnv("SQL_SERVER", ""),
			Port:     getEnvAsInt("SQL_PORT", defaultPort),
			Database: getEnv("SQL_DATABASE", ""),
			User:     getEnv("SQL_USER", ""),
			Password: getEnv("SQL_PASSWORD", ""),
			Encrypt:  getEnv("SQL_ENCRYPT", "true"),
			SSLMode:  getEnv("SQL_SSLMODE", "disable"),
		},
		Model: ModelConfig{
			ClassifierPath: getEnv("MODEL_PATH", "models/food_risk_model.json"),
			EncoderPath:    getEnv("ENCODER_PATH", "models/label_encoder.json"),
		},
		Job: JobConfig{
			Timezone:     getEnv("PREDICTION_TIMEZONE", "Asia/Colombo"),
			GasThreshold: getEnvAsInt("GAS_THRESHOLD", 4000),
			Interval:     getEnvAsDuration("SCHEDULE_INTERVAL", 15*time.Minute),
			RunTimeout:   getEnvAsDuration("RUN_TIMEOUT", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Channel:  getEnv("REDIS_CHANNEL", "fridge:predictions"),
		},
		Kafka: KafkaConfig{
			Brokers:          splitList(getEnv("KAFKA_BROKERS", "")),
			TopicPredictions: getEnv("KAFKA_TOPIC_PREDICTIONS", "fridge.predictions"),
		},
		Influx: InfluxConfig{
			URL:    getEnv("INFLUXDB_URL", ""),
			Token:  getEnv("INFLUXDB_TOKEN", ""),
			Org:    getEnv("INFLUXDB_ORG", ""),
			Bucket: getEnv("INFLUXDB_BUCKET", "fridge"),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9102"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	return config, nil
}

// Validate checks the settings a run cannot start without
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		key   string
		value string
	}{
		{"SQL_SERVER", c.Database.Server},
		{"SQL_DATABASE", c.Database.Database},
		{"SQL_USER", c.Database.User},
		{"SQL_PASSWORD", c.Database.Password},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	switch c.Database.Driver {
	case DriverSQLServer, DriverPostgres:
	default:
		return fmt.Errorf("unsupported SQL_DRIVER %q", c.Database.Driver)
	}

	if c.Job.GasThreshold <= 0 {
		return fmt.Errorf("GAS_THRESHOLD must be positive, got %d", c.Job.GasThreshold)
	}
	if c.Job.Interval <= 0 {
		return fmt.Errorf("SCHEDULE_INTERVAL must be positive, got %s", c.Job.Interval)
	}
	if _, err := c.Job.Location(); err != nil {
		return err
	}
	if c.Influx.URL != "" && (c.Influx.Token == "" || c.Influx.Org == "") {
		return fmt.Errorf("InfluxDB configuration is incomplete, set INFLUXDB_TOKEN and INFLUXDB_ORG")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
