package pgstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/his-sync/replicator/internal/domain/job"
)

type jobRow struct {
	ID              string    `db:"id"`
	ConfigurationID string    `db:"configuration_id"`
	JobType         string    `db:"job_type"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
	StartedAt       time.Time `db:"started_at"`
	CompletedAt     time.Time `db:"completed_at"`
	Progress        int       `db:"progress"`
	TotalItems      int       `db:"total_items"`
	ProcessedItems  int       `db:"processed_items"`
	SuccessCount    int       `db:"success_count"`
	ErrorCount      int       `db:"error_count"`
	WarningCount    int       `db:"warning_count"`
	Log             string    `db:"log"`
	RetryCount      int       `db:"retry_count"`
	MaxRetries      int       `db:"max_retries"`
	LastError       string    `db:"last_error"`
	NextRetryAt     time.Time `db:"next_retry_at"`
	ParentJobID     string    `db:"parent_job_id"`
	IsRetry         bool      `db:"is_retry"`
}

func (s *Store) CreateJob(ctx context.Context, j job.Job) (job.Job, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO sync_jobs
			(id, configuration_id, job_type, status, created_at, started_at, completed_at, progress, total_items,
			 processed_items, success_count, error_count, warning_count, log, retry_count, max_retries, last_error,
			 next_retry_at, parent_job_id, is_retry)
		VALUES
			(:id, :configuration_id, :job_type, :status, :created_at, :started_at, :completed_at, :progress, :total_items,
			 :processed_items, :success_count, :error_count, :warning_count, :log, :retry_count, :max_retries, :last_error,
			 :next_retry_at, :parent_job_id, :is_retry)
	`, toJobRow(j))
	if err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (s *Store) UpdateJob(ctx context.Context, j job.Job) (job.Job, error) {
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE sync_jobs
		SET status = :status, started_at = :started_at, completed_at = :completed_at, progress = :progress,
		    total_items = :total_items, processed_items = :processed_items, success_count = :success_count,
		    error_count = :error_count, warning_count = :warning_count, log = :log, retry_count = :retry_count,
		    max_retries = :max_retries, last_error = :last_error, next_retry_at = :next_retry_at,
		    is_retry = :is_retry
		WHERE id = :id
	`, toJobRow(j))
	if err != nil {
		return job.Job{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return job.Job{}, sql.ErrNoRows
	}
	return j, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (job.Job, error) {
	var row jobRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM sync_jobs WHERE id = $1`, id); err != nil {
		return job.Job{}, err
	}
	return fromJobRow(row), nil
}

func (s *Store) ListJobsByConfiguration(ctx context.Context, configID string, limit int) ([]job.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM sync_jobs WHERE configuration_id = $1 ORDER BY created_at DESC LIMIT $2
	`, configID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]job.Job, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromJobRow(r))
	}
	return out, nil
}

func (s *Store) HasActiveJob(ctx context.Context, configID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT count(*) FROM sync_jobs
		WHERE configuration_id = $1 AND status IN ('pending', 'running')
	`, configID)
	return count > 0, err
}

func (s *Store) ListRetryable(ctx context.Context) ([]job.Job, error) {
	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM sync_jobs
		WHERE status = 'failed' AND is_retry = false AND retry_count < max_retries
		  AND (next_retry_at IS NULL OR next_retry_at <= now())
	`)
	if err != nil {
		return nil, err
	}
	out := make([]job.Job, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromJobRow(r))
	}
	return out, nil
}

func toJobRow(j job.Job) jobRow {
	return jobRow{
		ID: j.ID, ConfigurationID: j.ConfigurationID, JobType: string(j.JobType), Status: string(j.Status),
		CreatedAt: j.CreatedAt, StartedAt: j.StartedAt, CompletedAt: j.CompletedAt, Progress: j.Progress,
		TotalItems: j.TotalItems, ProcessedItems: j.ProcessedItems, SuccessCount: j.SuccessCount,
		ErrorCount: j.ErrorCount, WarningCount: j.WarningCount, Log: j.Log, RetryCount: j.RetryCount,
		MaxRetries: j.MaxRetries, LastError: j.LastError, NextRetryAt: j.NextRetryAt,
		ParentJobID: j.ParentJobID, IsRetry: j.IsRetry,
	}
}

func fromJobRow(r jobRow) job.Job {
	return job.Job{
		ID: r.ID, ConfigurationID: r.ConfigurationID, JobType: job.Type(r.JobType), Status: job.Status(r.Status),
		CreatedAt: r.CreatedAt, StartedAt: r.StartedAt, CompletedAt: r.CompletedAt, Progress: r.Progress,
		TotalItems: r.TotalItems, ProcessedItems: r.ProcessedItems, SuccessCount: r.SuccessCount,
		ErrorCount: r.ErrorCount, WarningCount: r.WarningCount, Log: r.Log, RetryCount: r.RetryCount,
		MaxRetries: r.MaxRetries, LastError: r.LastError, NextRetryAt: r.NextRetryAt,
		ParentJobID: r.ParentJobID, IsRetry: r.IsRetry,
	}
}
