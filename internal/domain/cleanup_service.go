package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/Vovarama1992/go-utils/logger"

	"github.com/fileforgehq/fileforge/internal/ports"
)

// CleanupService удаляет просроченные результаты конвертации вместе
// с их исходниками. Ошибки по отдельным файлам не прерывают проход.
type CleanupService struct {
	files   ports.FileRepo
	jobs    ports.JobRepo
	storage ports.StorageService
	log     *logger.ZapLogger
}

func NewCleanupService(files ports.FileRepo, jobs ports.JobRepo, storage ports.StorageService, log *logger.ZapLogger) *CleanupService {
	return &CleanupService{files: files, jobs: jobs, storage: storage, log: log}
}

func (s *CleanupService) Sweep(ctx context.Context) (int, error) {
	expired, err := s.files.ListExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}

	deleted := 0
	for _, f := range expired {
		if err := s.storage.Remove(ctx, f.OutputKey); err != nil {
			s.warn("remove output "+f.OutputKey, err)
			continue
		}

		// исходник задачи больше не нужен
		if job, err := s.jobs.GetByID(ctx, f.JobID); err == nil && job.InputKey != "" {
			if err := s.storage.Remove(ctx, job.InputKey); err != nil {
				s.warn("remove input "+job.InputKey, err)
			}
		}

		if err := s.files.DeleteConverted(ctx, f.ID); err != nil {
			s.warn("delete converted row "+f.ID.String(), err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *CleanupService) warn(msg string, err error) {
	s.log.Log(logger.LogEntry{
		Level:   "warn",
		Message: "cleanup: " + msg,
		Service: "cleanup",
		Error:   err,
	})
}
