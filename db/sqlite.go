package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"phishguard/ml"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

const sqliteSchema = `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        url TEXT NOT NULL,
        predicted_label INTEGER NOT NULL,
        confidence REAL,
        request_id TEXT,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50),
        model_path TEXT,
        accuracy REAL,
        precision_score REAL,
        recall_score REAL,
        trained_at DATETIME,
        data_points INTEGER
    );
`

const postgresSchema = `
    CREATE TABLE IF NOT EXISTS predictions (
        id BIGSERIAL PRIMARY KEY,
        url TEXT NOT NULL,
        predicted_label INTEGER NOT NULL,
        confidence DOUBLE PRECISION,
        request_id TEXT,
        created_at TIMESTAMPTZ NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    CREATE TABLE IF NOT EXISTS training_log (
        id BIGSERIAL PRIMARY KEY,
        model_name VARCHAR(50),
        model_path TEXT,
        accuracy DOUBLE PRECISION,
        precision_score DOUBLE PRECISION,
        recall_score DOUBLE PRECISION,
        trained_at TIMESTAMPTZ,
        data_points INTEGER
    );
`

// Prediction is one served classification.
type Prediction struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Label       int       `json:"prediction"`
	Probability *float64  `json:"probability"`
	RequestID   string    `json:"request_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store keeps prediction history and the training log in SQLite or
// PostgreSQL.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates missing tables.
func Open(driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		database.SetMaxOpenConns(1)
	} else {
		database.SetMaxOpenConns(5)
		database.SetMaxIdleConns(1)
		database.SetConnMaxLifetime(5 * time.Minute)
	}

	store := &Store{db: database, driver: driver}
	if err := store.initSchema(); err != nil {
		database.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := sqliteSchema
	if s.driver == DriverPostgres {
		schema = postgresSchema
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) SavePrediction(ctx context.Context, p Prediction) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	var confidence sql.NullFloat64
	if p.Probability != nil {
		confidence = sql.NullFloat64{Float64: *p.Probability, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
        INSERT INTO predictions (url, predicted_label, confidence, request_id, created_at)
        VALUES (?, ?, ?, ?, ?)`),
		p.URL, p.Label, confidence, p.RequestID, p.CreatedAt.UTC())
	return err
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
        SELECT id, url, predicted_label, confidence, request_id, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]Prediction, 0)
	for rows.Next() {
		var p Prediction
		var confidence sql.NullFloat64
		var requestID sql.NullString
		if err := rows.Scan(&p.ID, &p.URL, &p.Label, &confidence, &requestID, &p.CreatedAt); err != nil {
			return nil, err
		}
		if confidence.Valid {
			value := confidence.Float64
			p.Probability = &value
		}
		p.RequestID = requestID.String
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

// RecordTraining appends a row to the training log.
func (s *Store) RecordTraining(ctx context.Context, run ml.TrainingRun) error {
	if run.TrainedAt.IsZero() {
		run.TrainedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
        INSERT INTO training_log (model_name, model_path, accuracy, precision_score, recall_score, trained_at, data_points)
        VALUES (?, ?, ?, ?, ?, ?, ?)`),
		run.ModelName, run.ModelPath, run.Accuracy, run.Precision, run.Recall, run.TrainedAt.UTC(), run.DataPoints)
	return err
}

// LoadTrainingLog returns all recorded training runs, newest first.
func (s *Store) LoadTrainingLog(ctx context.Context) ([]ml.TrainingRun, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT model_name, model_path, accuracy, precision_score, recall_score, trained_at, data_points
        FROM training_log
        ORDER BY trained_at DESC, id DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]ml.TrainingRun, 0)
	for rows.Next() {
		var run ml.TrainingRun
		if err := rows.Scan(&run.ModelName, &run.ModelPath, &run.Accuracy, &run.Precision, &run.Recall, &run.TrainedAt, &run.DataPoints); err != nil {
			return nil, err
		}
		logs = append(logs, run)
	}
	return logs, rows.Err()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
