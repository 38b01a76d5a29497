package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fileforgehq/fileforge/internal/ports"
)

// Окно, в котором повторная отправка того же файла считается дублем.
const duplicateWindow = 5 * time.Minute

const recentJobsLimit = 20

// ErrDuplicateJob — такая же задача уже в работе у этого клиента.
type ErrDuplicateJob struct {
	JobID uuid.UUID
}

func (e *ErrDuplicateJob) Error() string {
	return fmt.Sprintf("a similar job is already being processed: %s", e.JobID)
}

type jobService struct {
	repo ports.JobRepo
}

func NewJobService(repo ports.JobRepo) ports.JobService {
	return &jobService{repo: repo}
}

func (s *jobService) CheckDuplicate(ctx context.Context, clientIP string, tool ports.ToolType, fileSize int64) error {
	dup, err := s.repo.FindDuplicate(ctx, clientIP, tool, fileSize, duplicateWindow)
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	if dup != nil {
		return &ErrDuplicateJob{JobID: dup.ID}
	}
	return nil
}

func (s *jobService) Create(ctx context.Context, req ports.NewJob) (*ports.Job, error) {
	if err := s.CheckDuplicate(ctx, req.ClientIP, req.ToolType, req.FileSize); err != nil {
		return nil, err
	}

	job := &ports.Job{
		ID:           uuid.New(),
		ToolType:     req.ToolType,
		Operation:    req.Operation,
		Status:       ports.StatusPending,
		InputKey:     req.InputKey,
		InputFormat:  req.InputFormat,
		OutputFormat: req.OutputFormat,
		FileSize:     req.FileSize,
		Options:      req.Options,
		CreatedAt:    time.Now(),
		ClientIP:     req.ClientIP,
		UserAgent:    req.UserAgent,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (s *jobService) GetByID(ctx context.Context, id uuid.UUID) (*ports.Job, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *jobService) ListRecent(ctx context.Context, clientIP string) ([]*ports.Job, error) {
	return s.repo.ListByClientIP(ctx, clientIP, recentJobsLimit)
}
