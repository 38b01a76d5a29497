package domain

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fileforgehq/fileforge/internal/ports"
)

type fakeFileRepo struct {
	converted map[uuid.UUID]*ports.ConvertedFile
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{converted: map[uuid.UUID]*ports.ConvertedFile{}}
}

func (r *fakeFileRepo) CreateUploaded(_ context.Context, _ *ports.UploadedFile) error { return nil }

func (r *fakeFileRepo) CreateConverted(_ context.Context, f *ports.ConvertedFile) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	r.converted[f.ID] = f
	return nil
}

func (r *fakeFileRepo) GetConverted(_ context.Context, id uuid.UUID) (*ports.ConvertedFile, error) {
	f, ok := r.converted[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return f, nil
}

func (r *fakeFileRepo) GetConvertedByJob(_ context.Context, jobID uuid.UUID) (*ports.ConvertedFile, error) {
	for _, f := range r.converted {
		if f.JobID == jobID {
			return f, nil
		}
	}
	return nil, errors.New("not found")
}

func (r *fakeFileRepo) RecordDownload(_ context.Context, _ uuid.UUID) error { return nil }

func (r *fakeFileRepo) ListExpired(_ context.Context, now time.Time) ([]*ports.ConvertedFile, error) {
	var out []*ports.ConvertedFile
	for _, f := range r.converted {
		if f.Expired(now) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) DeleteConverted(_ context.Context, id uuid.UUID) error {
	delete(r.converted, id)
	return nil
}

type memStorage struct {
	blobs map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: map[string][]byte{}}
}

func (s *memStorage) SaveUpload(_ context.Context, name string, r io.Reader, size int64, ct string) (*ports.SavedUpload, error) {
	body, _ := io.ReadAll(r)
	key := "uploads/" + name
	s.blobs[key] = body
	return &ports.SavedUpload{Key: key, ContentType: ct, Size: size}, nil
}

func (s *memStorage) SaveOutput(_ context.Context, name string, r io.Reader, size int64, _ string) (string, error) {
	body, _ := io.ReadAll(r)
	key := "outputs/" + name
	s.blobs[key] = body
	return key, nil
}

func (s *memStorage) Open(_ context.Context, key string) (io.ReadCloser, int64, error) {
	body, ok := s.blobs[key]
	if !ok {
		return nil, 0, errors.New("no blob")
	}
	return io.NopCloser(bytes.NewReader(body)), int64(len(body)), nil
}

func (s *memStorage) Remove(_ context.Context, key string) error {
	delete(s.blobs, key)
	return nil
}

func TestSweepRemovesExpiredFiles(t *testing.T) {
	jobs := newFakeJobRepo()
	files := newFakeFileRepo()
	storage := newMemStorage()
	svc := NewCleanupService(files, jobs, storage, logger.NewZapLogger(zap.NewNop().Sugar()))

	job := &ports.Job{ID: uuid.New(), InputKey: "uploads/in.wav"}
	jobs.jobs[job.ID] = job
	storage.blobs["uploads/in.wav"] = []byte("in")
	storage.blobs["outputs/old.mp3"] = []byte("out")
	storage.blobs["outputs/fresh.mp3"] = []byte("out")

	expired := &ports.ConvertedFile{
		ID:        uuid.New(),
		JobID:     job.ID,
		OutputKey: "outputs/old.mp3",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	fresh := &ports.ConvertedFile{
		ID:        uuid.New(),
		JobID:     uuid.New(),
		OutputKey: "outputs/fresh.mp3",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	files.converted[expired.ID] = expired
	files.converted[fresh.ID] = fresh

	removed, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := files.converted[expired.ID]; ok {
		t.Fatal("expired row should be gone")
	}
	if _, ok := files.converted[fresh.ID]; !ok {
		t.Fatal("fresh row should survive")
	}
	if _, ok := storage.blobs["outputs/old.mp3"]; ok {
		t.Fatal("expired output blob should be removed")
	}
	if _, ok := storage.blobs["uploads/in.wav"]; ok {
		t.Fatal("job input blob should be removed")
	}
	if _, ok := storage.blobs["outputs/fresh.mp3"]; !ok {
		t.Fatal("fresh blob should survive")
	}
}

func TestSweepNothingExpired(t *testing.T) {
	svc := NewCleanupService(newFakeFileRepo(), newFakeJobRepo(), newMemStorage(),
		logger.NewZapLogger(zap.NewNop().Sugar()))
	removed, err := svc.Sweep(context.Background())
	if err != nil || removed != 0 {
		t.Fatalf("removed = %d, err = %v", removed, err)
	}
}
