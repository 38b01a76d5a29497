package alerts

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	infra Notifier
}

func NewService(infra Notifier) *Service {
	return &Service{infra: infra}
}

func (s *Service) Notify(ctx context.Context, jobID uuid.UUID, err error, details string) error {
	return s.infra.Notify(ctx, jobID, err, details)
}
