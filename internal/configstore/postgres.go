package configstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the production Store, grounded on the teacher's
// store.PostgresStore: a pooled connection plus an idempotent
// ensureSchema pass run once at construction.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn, verifies reachability, and ensures every
// required table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("configstore: postgres DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("configstore: create pool: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("configstore: ping: %w", err)
	}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS test_models (
			revision_id TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			mn BIGINT NOT NULL,
			option TEXT NOT NULL DEFAULT '',
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (mn, option, revision_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_test_models_mn_option ON test_models(mn, option)`,
		`CREATE TABLE IF NOT EXISTS test_iterations (
			id TEXT PRIMARY KEY,
			sn BIGINT NOT NULL,
			mn BIGINT NOT NULL,
			option TEXT NOT NULL DEFAULT '',
			revision_id TEXT NOT NULL,
			state TEXT NOT NULL,
			pass BOOLEAN NOT NULL DEFAULT FALSE,
			unfinished BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			finished_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_test_iterations_sn ON test_iterations(sn)`,
		`CREATE INDEX IF NOT EXISTS idx_test_iterations_created_at ON test_iterations(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS test_iteration_steps (
			iteration_id TEXT NOT NULL REFERENCES test_iterations(id) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			kind TEXT NOT NULL,
			success BOOLEAN NOT NULL DEFAULT FALSE,
			error_text TEXT,
			payload JSONB,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ,
			PRIMARY KEY (iteration_id, ordinal)
		)`,
		`CREATE TABLE IF NOT EXISTS app_config_updates (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS config_files (
			path TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS yaml_files (
			path TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("configstore: ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) ResolveModel(ctx context.Context, mn int64, option string) (*TestModel, error) {
	var data []byte
	row := p.pool.QueryRow(ctx, `
		SELECT data FROM test_models
		WHERE mn = $1 AND option = $2
		ORDER BY created_at DESC LIMIT 1`, mn, option)
	if err := row.Scan(&data); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("configstore: resolve model: %w", err)
	}
	var model TestModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("configstore: decode model: %w", err)
	}
	return &model, nil
}

// UpsertModel writes model as the latest revision for (model.MN,
// model.Option). RevisionID is expected to already be content-derived (see
// YamlReloader), so a conflicting revision_id is treated as the same push
// retried rather than an error.
func (p *Postgres) UpsertModel(ctx context.Context, model *TestModel) error {
	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("configstore: encode model: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO test_models (revision_id, content_hash, mn, option, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (revision_id) DO UPDATE SET data = EXCLUDED.data`,
		model.RevisionID, model.ContentHash, model.MN, model.Option, data)
	if err != nil {
		return fmt.Errorf("configstore: upsert model: %w", err)
	}
	return nil
}

func (p *Postgres) CreateIteration(ctx context.Context, dut DUT, revisionID string) (*Iteration, error) {
	it := &Iteration{
		ID:         uuid.NewString(),
		DUT:        dut,
		RevisionID: revisionID,
		State:      IterationIdle,
		CreatedAt:  time.Now(),
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO test_iterations (id, sn, mn, option, revision_id, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		it.ID, dut.SN, dut.MN, dut.Option, revisionID, it.State.String(), it.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("configstore: create iteration: %w", err)
	}
	return it, nil
}

// CommitIteration writes the full iteration tree in one transaction, per
// spec.md §4.5 "Persistence": intermediate step progress is never
// committed separately.
func (p *Postgres) CommitIteration(ctx context.Context, it *Iteration) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("configstore: begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE test_iterations
		SET state = $2, pass = $3, unfinished = $4, finished_at = $5
		WHERE id = $1`,
		it.ID, it.State.String(), it.Pass, it.Unfinished, it.FinishedAt)
	if err != nil {
		return fmt.Errorf("configstore: update iteration: %w", err)
	}

	for _, s := range it.Steps {
		payload, err := json.Marshal(s.Payload)
		if err != nil {
			return fmt.Errorf("configstore: encode step payload: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO test_iteration_steps
				(iteration_id, ordinal, kind, success, error_text, payload, started_at, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (iteration_id, ordinal) DO UPDATE SET
				success = EXCLUDED.success,
				error_text = EXCLUDED.error_text,
				payload = EXCLUDED.payload,
				finished_at = EXCLUDED.finished_at`,
			it.ID, s.Ordinal, s.Kind.String(), s.Success, s.ErrorText, payload, s.StartedAt, s.FinishedAt)
		if err != nil {
			return fmt.Errorf("configstore: write step %d: %w", s.Ordinal, err)
		}
	}

	return tx.Commit(ctx)
}

func (p *Postgres) RecentIterations(ctx context.Context, n int) ([]*Iteration, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, sn, mn, option, revision_id, state, pass, unfinished, created_at, finished_at
		FROM test_iterations ORDER BY created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("configstore: recent iterations: %w", err)
	}
	defer rows.Close()

	var out []*Iteration
	for rows.Next() {
		it := &Iteration{}
		var state string
		var finishedAt *time.Time
		if err := rows.Scan(&it.ID, &it.DUT.SN, &it.DUT.MN, &it.DUT.Option, &it.RevisionID,
			&state, &it.Pass, &it.Unfinished, &it.CreatedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("configstore: scan iteration: %w", err)
		}
		it.State = parseIterationState(state)
		if finishedAt != nil {
			it.FinishedAt = *finishedAt
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (p *Postgres) RecordConfigUpdate(ctx context.Context, u AppConfigUpdate) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO app_config_updates (id, key, value, applied_at)
		VALUES ($1, $2, $3, $4)`, u.ID, u.Key, u.Value, u.AppliedAt)
	if err != nil {
		return fmt.Errorf("configstore: record config update: %w", err)
	}
	return nil
}

func parseIterationState(s string) IterationState {
	switch s {
	case "idle":
		return IterationIdle
	case "configured":
		return IterationConfigured
	case "running":
		return IterationRunning
	case "completed":
		return IterationCompleted
	case "aborted":
		return IterationAborted
	case "fatal":
		return IterationFatal
	default:
		return IterationIdle
	}
}
