package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DB wraps a PostgreSQL connection pool for audit logging.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, dsn string) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().Msg("connected to PostgreSQL")
	return &DB{pool: pool}, nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Healthy checks database connectivity.
func (db *DB) Healthy(ctx context.Context) bool {
	return db.pool.Ping(ctx) == nil
}

// LogExecution inserts an execution record into the audit log.
func (db *DB) LogExecution(ctx context.Context, exec *Execution) error {
	query := `
		INSERT INTO plugin_executions (request_id, plugin_name, mode, status, error,
			output, duration_ms, user_id, session_id, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := db.pool.Exec(ctx, query,
		exec.RequestID, exec.PluginName, exec.Mode, exec.Status,
		truncateForDB(exec.Error, 4096),
		truncateForDB(exec.Output, 65535),
		exec.DurationMS, exec.UserID, exec.SessionID,
		exec.CreatedAt, exec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// LogViolation inserts a policy-violation record.
func (db *DB) LogViolation(ctx context.Context, v *ViolationRecord) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO plugin_violations (id, request_id, plugin_name, type, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := db.pool.Exec(ctx, query,
		v.ID, v.RequestID, v.PluginName, v.Type, v.Detail, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting violation: %w", err)
	}
	return nil
}

// GetExecution retrieves a single execution by request ID.
func (db *DB) GetExecution(ctx context.Context, requestID string) (*Execution, error) {
	query := `
		SELECT request_id, plugin_name, mode, status, error, output,
			duration_ms, user_id, session_id, created_at, completed_at
		FROM plugin_executions WHERE request_id = $1`

	var exec Execution
	err := db.pool.QueryRow(ctx, query, requestID).Scan(
		&exec.RequestID, &exec.PluginName, &exec.Mode, &exec.Status,
		&exec.Error, &exec.Output,
		&exec.DurationMS, &exec.UserID, &exec.SessionID,
		&exec.CreatedAt, &exec.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("querying execution %s: %w", requestID, err)
	}
	return &exec, nil
}

// ListExecutions queries the audit log with optional filters.
func (db *DB) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]Execution, error) {
	query := `
		SELECT request_id, plugin_name, mode, status, error,
			duration_ms, created_at, completed_at
		FROM plugin_executions
		WHERE ($1 = '' OR plugin_name = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at <= $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := db.pool.Query(ctx, query,
		filter.PluginName, filter.Status, filter.Since, filter.Until, limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var results []Execution
	for rows.Next() {
		var exec Execution
		if err := rows.Scan(
			&exec.RequestID, &exec.PluginName, &exec.Mode, &exec.Status,
			&exec.Error, &exec.DurationMS,
			&exec.CreatedAt, &exec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning execution row: %w", err)
		}
		results = append(results, exec)
	}

	return results, rows.Err()
}

func truncateForDB(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
