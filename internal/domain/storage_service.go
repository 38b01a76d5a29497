package domain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/fileforgehq/fileforge/internal/ports"
)

type storageService struct {
	store ports.BlobStore
}

func NewStorageService(store ports.BlobStore) ports.StorageService {
	return &storageService{store: store}
}

func (s *storageService) SaveUpload(ctx context.Context, originalName string, r io.Reader, size int64, contentType string) (*ports.SavedUpload, error) {
	if contentType == "" || contentType == "application/octet-stream" {
		sniffed, wrapped, err := sniffContentType(r)
		if err != nil {
			return nil, fmt.Errorf("sniff content type: %w", err)
		}
		contentType = sniffed
		r = wrapped
	}

	key := BuildUploadKey(time.Now(), originalName)
	if err := s.store.Save(ctx, key, r, size, contentType); err != nil {
		return nil, err
	}
	return &ports.SavedUpload{Key: key, ContentType: contentType, Size: size}, nil
}

func (s *storageService) SaveOutput(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	key := BuildOutputKey(time.Now(), name)
	if err := s.store.Save(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

func (s *storageService) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	return s.store.Open(ctx, key)
}

func (s *storageService) Remove(ctx context.Context, key string) error {
	return s.store.Remove(ctx, key)
}

// sniffContentType читает заголовок потока и возвращает reader,
// отдающий поток целиком.
func sniffContentType(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head = head[:n]
	mtype := mimetype.Detect(head)
	return mtype.String(), io.MultiReader(bytes.NewReader(head), r), nil
}

// BuildUploadKey — uploads/YYYY/MM/DD/<hex8>_<чистое имя>.
func BuildUploadKey(now time.Time, originalName string) string {
	return buildKey("uploads", now, originalName)
}

// BuildOutputKey — outputs/YYYY/MM/DD/<hex8>_<имя>.
func BuildOutputKey(now time.Time, name string) string {
	return buildKey("outputs", now, name)
}

func buildKey(prefix string, now time.Time, name string) string {
	hex8 := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return path.Join(
		prefix,
		now.Format("2006/01/02"),
		hex8+"_"+SanitizeFilename(name),
	)
}

var (
	unsafeChars  = regexp.MustCompile(`[^\w\s\-.]`)
	underscoreRe = regexp.MustCompile(`_{2,}`)
	spaceRe      = regexp.MustCompile(`\s{2,}`)
)

// SanitizeFilename убирает небезопасные символы, сохраняя читаемость.
func SanitizeFilename(filename string) string {
	s := unsafeChars.ReplaceAllString(filename, "_")
	s = underscoreRe.ReplaceAllString(s, "_")
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, " _.")
	if len(s) > 255 {
		s = s[:255]
	}
	if s == "" {
		return "file"
	}
	return s
}

// CleanOutputFilename — имя для скачивания: база оригинала + новое
// расширение, без хэшей.
func CleanOutputFilename(originalName, outputFormat string) string {
	base := originalName
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return SanitizeFilename(base) + "." + strings.ToLower(outputFormat)
}

// OriginalNameFromKey восстанавливает имя загрузки из ключа uploads/.
func OriginalNameFromKey(key string) string {
	name := path.Base(key)
	if idx := strings.Index(name, "_"); idx == 8 {
		return name[idx+1:]
	}
	return name
}
