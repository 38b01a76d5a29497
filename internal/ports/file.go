package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DTO для загруженного пользователем файла
type UploadedFile struct {
	ID           uuid.UUID
	OriginalName string
	StoredKey    string
	FileType     string // sniffed MIME
	FileSize     int64
	UploadedAt   time.Time
	JobID        *uuid.UUID
}

// DTO для результата конвертации, доступного на скачивание
type ConvertedFile struct {
	ID               uuid.UUID
	JobID            uuid.UUID
	OutputKey        string
	OutputFormat     string
	OriginalFilename string // чистое имя для пользователя, без хэшей
	FileSize         int64
	CreatedAt        time.Time
	ExpiresAt        time.Time
	DownloadCount    int
	LastDownloadedAt *time.Time
}

func (f *ConvertedFile) Expired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}

type FileRepo interface {
	CreateUploaded(ctx context.Context, f *UploadedFile) error
	CreateConverted(ctx context.Context, f *ConvertedFile) error
	GetConverted(ctx context.Context, id uuid.UUID) (*ConvertedFile, error)
	GetConvertedByJob(ctx context.Context, jobID uuid.UUID) (*ConvertedFile, error)
	RecordDownload(ctx context.Context, id uuid.UUID) error
	ListExpired(ctx context.Context, now time.Time) ([]*ConvertedFile, error)
	DeleteConverted(ctx context.Context, id uuid.UUID) error
}
