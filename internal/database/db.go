package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoQualifyingReading is returned when no sensor row passes the gas filter
	ErrNoQualifyingReading = errors.New("no qualifying sensor reading")
	// ErrUnsupportedDriver is returned for drivers without a query dialect
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// Dialect holds the driver-specific SQL for the two statements a run executes
type Dialect struct {
	Driver      string
	LatestQuery string
	InsertQuery string
}

var dialects = map[string]Dialect{
	"sqlserver": {
		Driver: "sqlserver",
		LatestQuery: `
			SELECT TOP 1 temperature_dht11, humidity_dht11, gas1
			FROM FridgeData
			WHERE gas1 < @p1
			ORDER BY [date] DESC, [time] DESC
		`,
		InsertQuery: `
			INSERT INTO PredictedFoodRisk (
				timestamp, temperature_dht11, humidity_dht11, gas1, predicted_risk
			) VALUES (@p1, @p2, @p3, @p4, @p5)
		`,
	},
	"postgres": {
		Driver: "postgres",
		LatestQuery: `
			SELECT temperature_dht11, humidity_dht11, gas1
			FROM FridgeData
			WHERE gas1 < $1
			ORDER BY "date" DESC, "time" DESC
			LIMIT 1
		`,
		InsertQuery: `
			INSERT INTO PredictedFoodRisk (
				timestamp, temperature_dht11, humidity_dht11, gas1, predicted_risk
			) VALUES ($1, $2, $3, $4, $5)
		`,
	},
}

// DialectFor returns the SQL dialect for a driver name
func DialectFor(driver string) (Dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	return d, nil
}

// DB wraps the database connection
type DB struct {
	*sql.DB
	dialect Dialect
}

// New wraps an already opened handle
func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{DB: db, dialect: dialect}
}

// Connect establishes a connection to the database
func Connect(ctx context.Context, driver, connectionString string) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Driver, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A run holds one connection and releases it when it ends
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db, dialect), nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(ctx context.Context, migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		log.Info().Str("migration", filename).Msg("running migration")

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	log.Info().Int("count", len(sqlFiles)).Msg("all migrations completed")
	return nil
}

// LatestReading returns the most recent reading with gas below threshold
func (db *DB) LatestReading(ctx context.Context, gasThreshold int) (*SensorReading, error) {
	var r SensorReading
	err := db.QueryRowContext(ctx, db.dialect.LatestQuery, gasThreshold).Scan(
		&r.Temperature,
		&r.Humidity,
		&r.Gas,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w (gas1 < %d)", ErrNoQualifyingReading, gasThreshold)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest reading: %w", err)
	}

	return &r, nil
}

// InsertPrediction stores a prediction and commits it
func (db *DB) InsertPrediction(ctx context.Context, p *Prediction) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, db.dialect.InsertQuery,
		p.Timestamp,
		p.Temperature,
		p.Humidity,
		p.Gas,
		p.PredictedRisk,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to insert prediction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prediction: %w", err)
	}

	return nil
}
