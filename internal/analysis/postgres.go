package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists analysis reports in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_reports (
			id TEXT PRIMARY KEY,
			scenario_id TEXT NOT NULL,
			transcript TEXT NOT NULL,
			assessment JSONB,
			pronunciation JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_reports_scenario_created ON analysis_reports (scenario_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, report Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	assessment, err := marshalNullable(report.Assessment)
	if err != nil {
		return fmt.Errorf("encode assessment: %w", err)
	}
	pronunciation, err := marshalNullable(report.Pronunciation)
	if err != nil {
		return fmt.Errorf("encode pronunciation: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis_reports (id, scenario_id, transcript, assessment, pronunciation, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		report.ID,
		report.ScenarioID,
		report.Transcript,
		assessment,
		pronunciation,
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentReports(ctx context.Context, scenarioID string, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, scenario_id, transcript, assessment, pronunciation, created_at
		 FROM analysis_reports WHERE ($1 = '' OR scenario_id = $1)
		 ORDER BY created_at DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, scenarioID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent reports: %w", err)
	}
	defer rows.Close()

	reports := make([]Report, 0, limit)
	for rows.Next() {
		var (
			r             Report
			assessment    []byte
			pronunciation []byte
		)
		if err := rows.Scan(&r.ID, &r.ScenarioID, &r.Transcript, &assessment, &pronunciation, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		if len(assessment) > 0 {
			r.Assessment = &Assessment{}
			if err := json.Unmarshal(assessment, r.Assessment); err != nil {
				return nil, fmt.Errorf("decode assessment: %w", err)
			}
		}
		if len(pronunciation) > 0 {
			r.Pronunciation = &PronunciationResult{}
			if err := json.Unmarshal(pronunciation, r.Pronunciation); err != nil {
				return nil, fmt.Errorf("decode pronunciation: %w", err)
			}
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(reports)-1; i < j; i, j = i+1, j-1 {
		reports[i], reports[j] = reports[j], reports[i]
	}

	return reports, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func marshalNullable(v any) ([]byte, error) {
	switch t := v.(type) {
	case *Assessment:
		if t == nil {
			return nil, nil
		}
	case *PronunciationResult:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
