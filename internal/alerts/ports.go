package alerts

import (
	"context"

	"github.com/google/uuid"
)

type Notifier interface {
	// Notify — сообщает админу об упавшей задаче
	Notify(ctx context.Context, jobID uuid.UUID, err error, details string) error
}
