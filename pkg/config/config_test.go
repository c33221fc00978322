package config

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
)

func setRequired(t *testing.T) {
	t.Setenv("SQL_SERVER", "fridge.database.windows.net")
	t.Setenv("SQL_DATABASE", "iot")
	t.Setenv("SQL_USER", "reader")
	t.Setenv("SQL_PASSWORD", "p@ss;word")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Driver != DriverSQLServer {
		t.Errorf("Expected driver %s, got %s", DriverSQLServer, cfg.Database.Driver)
	}
	if cfg.Database.Port != 1433 {
		t.Errorf("Expected port 1433, got %d", cfg.Database.Port)
	}
	if cfg.Job.Timezone != "Asia/Colombo" {
		t.Errorf("Expected Asia/Colombo, got %s", cfg.Job.Timezone)
	}
	if cfg.Job.GasThreshold != 4000 {
		t.Errorf("Expected gas threshold 4000, got %d", cfg.Job.GasThreshold)
	}
	if cfg.Job.Interval != 15*time.Minute {
		t.Errorf("Expected 15m interval, got %s", cfg.Job.Interval)
	}
	if cfg.Kafka.Brokers != nil {
		t.Errorf("Expected no Kafka brokers, got %v", cfg.Kafka.Brokers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoad_PostgresPort(t *testing.T) {
	setRequired(t)
	t.Setenv("SQL_DRIVER", "Postgres")

	cfg, _ := Load()
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Expected driver postgres, got %s", cfg.Database.Driver)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Expected port 5432, got %d", cfg.Database.Port)
	}

	dsn := cfg.Database.ConnectionString()
	if !strings.HasPrefix(dsn, "postgres://") || !strings.Contains(dsn, ":5432/iot") {
		t.Errorf("Unexpected postgres DSN: %s", dsn)
	}
}

func TestValidate_MissingCredentials(t *testing.T) {
	t.Setenv("SQL_SERVER", "")
	t.Setenv("SQL_DATABASE", "iot")
	t.Setenv("SQL_USER", "")
	t.Setenv("SQL_PASSWORD", "secret")

	cfg, _ := Load()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), "SQL_SERVER") || !strings.Contains(err.Error(), "SQL_USER") {
		t.Errorf("Error should name missing variables: %v", err)
	}
	if strings.Contains(err.Error(), "SQL_PASSWORD") {
		t.Errorf("SQL_PASSWORD was set but reported missing: %v", err)
	}
}

func TestValidate_BadTimezone(t *testing.T) {
	setRequired(t)
	t.Setenv("PREDICTION_TIMEZONE", "Mars/Olympus")

	cfg, _ := Load()
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unknown timezone")
	}
}

func TestValidate_IncompleteInflux(t *testing.T) {
	setRequired(t)
	t.Setenv("INFLUXDB_URL", "http://localhost:8086")

	cfg, _ := Load()
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for InfluxDB URL without token/org")
	}
}

func TestConnectionString_SQLServerEscapesPassword(t *testing.T) {
	d := DatabaseConfig{
		Driver:   DriverSQLServer,
		Server:   "fridge.database.windows.net",
		Port:     1433,
		Database: "iot",
		User:     "reader",
		Password: "p@ss;word",
		Encrypt:  "true",
	}

	dsn := d.ConnectionString()
	if !strings.HasPrefix(dsn, "sqlserver://reader:") {
		t.Errorf("Unexpected DSN prefix: %s", dsn)
	}
	if strings.Contains(dsn, "p@ss;word") {
		t.Errorf("Password should be escaped in DSN: %s", dsn)
	}
	if !strings.Contains(dsn, "database=iot") || !strings.Contains(dsn, "encrypt=true") {
		t.Errorf("DSN missing query parameters: %s", dsn)
	}
}

func TestConnectionString_PostgresEscapesPassword(t *testing.T) {
	d := DatabaseConfig{
		Driver:   DriverPostgres,
		Server:   "localhost",
		Port:     5432,
		Database: "iot",
		User:     "reader",
		Password: `s3cret word'\`,
		SSLMode:  "disable",
	}

	dsn := d.ConnectionString()
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("DSN does not parse as a URL: %v", err)
	}
	if u.Scheme != "postgres" || u.Host != "localhost:5432" || u.Path != "/iot" {
		t.Errorf("Unexpected DSN: %s", dsn)
	}
	if pw, _ := u.User.Password(); pw != `s3cret word'\` {
		t.Errorf("Password did not round-trip, got %q", pw)
	}
	if strings.Contains(dsn, " ") {
		t.Errorf("Password should be escaped in DSN: %s", dsn)
	}
	if u.Query().Get("sslmode") != "disable" {
		t.Errorf("DSN missing sslmode: %s", dsn)
	}
	if _, err := pq.NewConnector(dsn); err != nil {
		t.Errorf("lib/pq rejects DSN: %v", err)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" broker1:9092, ,broker2:9092 ")
	if len(got) != 2 || got[0] != "broker1:9092" || got[1] != "broker2:9092" {
		t.Errorf("Unexpected split result: %v", got)
	}
}
