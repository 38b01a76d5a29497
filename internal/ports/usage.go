package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Запись об использовании инструмента, для аналитики
type UsageEntry struct {
	ToolName         string
	ClientIP         string
	UserAgent        string
	Success          bool
	JobID            *uuid.UUID
	ProcessingTimeMS *int64
	UsedAt           time.Time
}

type UsageRepo interface {
	Insert(ctx context.Context, e *UsageEntry) error
	CountSince(ctx context.Context, clientIP string, since time.Time) (int, error)
}
