package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/jobs"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/store"
)

// PostgresJobStore implements the jobs.Store interface using PostgreSQL.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

var _ jobs.Store = (*PostgresJobStore)(nil)

// SaveJob persists a new job in the pending state.
func (s *PostgresJobStore) SaveJob(ctx context.Context, job jobs.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO jobs (id, type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query,
		job.ID(),
		job.Type(),
		job.Payload(),
		string(jobs.StatusPending),
		now,
		now,
	)
	if err != nil {
		log.Error("failed to save job",
			"job_id", job.ID(),
			"job_type", job.Type(),
			"error", err)
		return fmt.Errorf("failed to save job to database: %w", MapError(err))
	}
	return nil
}

// UpdateJobStatus records a status transition. An empty errorMsg clears the
// stored error. A missing job is a no-op.
func (s *PostgresJobStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status jobs.Status, errorMsg string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE jobs
		SET status = $1, error_message = NULLIF($2, ''), updated_at = $3
		WHERE id = $4
	`
	result, err := s.db.ExecContext(ctx, query, string(status), errorMsg, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update job status",
			"job_id", id,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to update job status: %w", MapError(err))
	}

	if err := CheckRowsAffected(result, nil); err != nil {
		log.Warn("no job found with ID to update status", "job_id", id)
	}
	return nil
}

// PendingJobs retrieves every pending job, oldest first.
func (s *PostgresJobStore) PendingJobs(ctx context.Context) ([]jobs.Record, error) {
	return s.byStatus(ctx, jobs.StatusPending, 0)
}

// ProcessingJobs retrieves processing jobs, optionally only those untouched
// for olderThan.
func (s *PostgresJobStore) ProcessingJobs(ctx context.Context, olderThan time.Duration) ([]jobs.Record, error) {
	return s.byStatus(ctx, jobs.StatusProcessing, olderThan)
}

func (s *PostgresJobStore) byStatus(ctx context.Context, status jobs.Status, olderThan time.Duration) ([]jobs.Record, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, type, payload, status, error_message, created_at, updated_at
		FROM jobs
		WHERE status = $1
		ORDER BY created_at ASC
	`
	args := []any{string(status)}
	if olderThan > 0 {
		query = `
			SELECT id, type, payload, status, error_message, created_at, updated_at
			FROM jobs
			WHERE status = $1 AND updated_at < $2
			ORDER BY created_at ASC
		`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs by status", "status", status, "error", err)
		return nil, fmt.Errorf("failed to query jobs by status: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var records []jobs.Record
	for rows.Next() {
		var (
			rec       jobs.Record
			recStatus string
			errMsg    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Payload, &recStatus, &errMsg, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			log.Error("failed to scan job row", "status", status, "error", err)
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		rec.Status = jobs.Status(recStatus)
		rec.Error = errMsg.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating job rows", "status", status, "error", err)
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return records, nil
}
