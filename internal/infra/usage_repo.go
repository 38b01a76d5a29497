package infra

import (
	"context"
	"database/sql"
	"time"

	"github.com/fileforgehq/fileforge/internal/ports"
)

type usageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) ports.UsageRepo {
	return &usageRepo{db: db}
}

func (r *usageRepo) Insert(ctx context.Context, e *ports.UsageEntry) error {
	if e.UsedAt.IsZero() {
		e.UsedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tool_usage_logs
			(tool_name, client_ip, user_agent, success, job_id, processing_time_ms, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ToolName, e.ClientIP, e.UserAgent, e.Success, e.JobID, e.ProcessingTimeMS, e.UsedAt)
	return err
}

func (r *usageRepo) CountSince(ctx context.Context, clientIP string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM tool_usage_logs
		WHERE client_ip = $1 AND used_at >= $2
	`, clientIP, since).Scan(&count)
	return count, err
}
