package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ToolType string

const (
	ToolAudio ToolType = "audio"
	ToolVideo ToolType = "video"
	ToolImage ToolType = "image"
	ToolPDF   ToolType = "pdf"
)

type Operation string

const (
	OpConvert     Operation = "convert"
	OpTrim        Operation = "trim"
	OpMerge       Operation = "merge"
	OpSplit       Operation = "split"
	OpCompress    Operation = "compress"
	OpExtract     Operation = "extract"
	OpRotate      Operation = "rotate"
	OpProtect     Operation = "protect"
	OpUnlock      Operation = "unlock"
	OpReorder     Operation = "reorder"
	OpDeletePages Operation = "delete_pages"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DTO для задачи конвертации
type Job struct {
	ID           uuid.UUID
	ToolType     ToolType
	Operation    Operation
	Status       JobStatus
	InputKey     string
	OutputKey    *string
	InputFormat  string
	OutputFormat string
	FileSize     int64
	Duration     *float64
	Options      map[string]any
	CreatedAt    time.Time
	CompletedAt  *time.Time
	ErrorMessage *string
	ClientIP     string
	UserAgent    string
}

// ProcessingTime — секунды от создания до завершения, nil пока job не терминальна.
func (j *Job) ProcessingTime() *float64 {
	if j.CompletedAt == nil {
		return nil
	}
	secs := j.CompletedAt.Sub(j.CreatedAt).Seconds()
	return &secs
}

type JobRepo interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)
	ListByClientIP(ctx context.Context, clientIP string, limit int) ([]*Job, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, outputKey string) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	FindDuplicate(ctx context.Context, clientIP string, tool ToolType, fileSize int64, window time.Duration) (*Job, error)
	SetDuration(ctx context.Context, id uuid.UUID, seconds float64) error
}

type NewJob struct {
	ToolType     ToolType
	Operation    Operation
	InputKey     string
	InputFormat  string
	OutputFormat string
	FileSize     int64
	Options      map[string]any
	ClientIP     string
	UserAgent    string
}

type JobService interface {
	// CheckDuplicate возвращает ErrDuplicateJob, если такая же задача
	// этого клиента уже в работе. Зовётся до сохранения загрузки.
	CheckDuplicate(ctx context.Context, clientIP string, tool ToolType, fileSize int64) error
	// Create проверяет дубликаты и создаёт запись в статусе pending.
	// Для дубликата возвращает ErrDuplicateJob с id существующей задачи.
	Create(ctx context.Context, req NewJob) (*Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)
	ListRecent(ctx context.Context, clientIP string) ([]*Job, error)
}

// JobRunner выполняет задачу целиком: pending → processing → terminal.
type JobRunner interface {
	Execute(ctx context.Context, jobID uuid.UUID) error
}
