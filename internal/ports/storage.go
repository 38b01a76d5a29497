package ports

import (
	"context"
	"io"
)

// Низкоуровневое блобовое хранилище (локальный диск либо S3)
type BlobStore interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Remove(ctx context.Context, key string) error
}

type SavedUpload struct {
	Key         string
	ContentType string
	Size        int64
}

type StorageService interface {
	// SaveUpload кладёт файл под uploads/YYYY/MM/DD/<hex8>_<name>,
	// определяя content type по содержимому, если заголовок пуст.
	SaveUpload(ctx context.Context, originalName string, r io.Reader, size int64, contentType string) (*SavedUpload, error)
	SaveOutput(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Remove(ctx context.Context, key string) error
}
