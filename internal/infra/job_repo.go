package infra

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fileforgehq/fileforge/internal/ports"
)

type jobRepo struct {
	db *sql.DB
}

func NewJobRepo(db *sql.DB) ports.JobRepo {
	return &jobRepo{db: db}
}

func (r *jobRepo) Create(ctx context.Context, job *ports.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	opts, err := json.Marshal(job.Options)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversion_jobs
			(id, tool_type, operation_type, status, input_key, input_format,
			 output_format, file_size, options, created_at, client_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, job.ID, job.ToolType, job.Operation, ports.StatusPending, job.InputKey,
		job.InputFormat, job.OutputFormat, job.FileSize, opts, job.CreatedAt,
		job.ClientIP, job.UserAgent)
	if err != nil {
		return err
	}
	job.Status = ports.StatusPending
	return nil
}

const jobColumns = `
	id, tool_type, operation_type, status, input_key, output_key, input_format,
	output_format, file_size, duration, options, created_at, completed_at,
	error_message, client_ip, user_agent
`

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*ports.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM conversion_jobs
		WHERE id = $1
	`, id)
	return scanJob(row)
}

func (r *jobRepo) ListByClientIP(ctx context.Context, clientIP string, limit int) ([]*ports.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM conversion_jobs
		WHERE client_ip = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, clientIP, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*ports.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *jobRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversion_jobs
		SET status = $1
		WHERE id = $2 AND status = $3
	`, ports.StatusProcessing, id, ports.StatusPending)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id uuid.UUID, outputKey string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversion_jobs
		SET status = $1, output_key = $2, completed_at = NOW()
		WHERE id = $3 AND status = $4
	`, ports.StatusCompleted, outputKey, id, ports.StatusProcessing)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *jobRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversion_jobs
		SET status = $1, error_message = $2, completed_at = NOW()
		WHERE id = $3 AND status NOT IN ($4, $5)
	`, ports.StatusFailed, message, id, ports.StatusCompleted, ports.StatusFailed)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *jobRepo) FindDuplicate(ctx context.Context, clientIP string, tool ports.ToolType, fileSize int64, window time.Duration) (*ports.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM conversion_jobs
		WHERE client_ip = $1
		  AND tool_type = $2
		  AND file_size = $3
		  AND status IN ($4, $5)
		  AND created_at >= $6
		ORDER BY created_at DESC
		LIMIT 1
	`, clientIP, tool, fileSize, ports.StatusPending, ports.StatusProcessing,
		time.Now().Add(-window))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (r *jobRepo) SetDuration(ctx context.Context, id uuid.UUID, seconds float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversion_jobs SET duration = $1 WHERE id = $2
	`, seconds, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*ports.Job, error) {
	var (
		job  ports.Job
		opts []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.ToolType,
		&job.Operation,
		&job.Status,
		&job.InputKey,
		&job.OutputKey,
		&job.InputFormat,
		&job.OutputFormat,
		&job.FileSize,
		&job.Duration,
		&opts,
		&job.CreatedAt,
		&job.CompletedAt,
		&job.ErrorMessage,
		&job.ClientIP,
		&job.UserAgent,
	); err != nil {
		return nil, err
	}
	if len(opts) > 0 {
		if err := json.Unmarshal(opts, &job.Options); err != nil {
			return nil, err
		}
	}
	return &job, nil
}

// Переходы статусов защищены WHERE: завершённая задача не перезаписывается.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
