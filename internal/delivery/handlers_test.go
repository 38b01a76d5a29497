package delivery

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/fileforgehq/fileforge/internal/domain"
	"github.com/fileforgehq/fileforge/internal/ports"
	"github.com/fileforgehq/fileforge/internal/workers"
)

func testLogger() *logger.ZapLogger {
	return logger.NewZapLogger(zap.NewNop().Sugar())
}

// --- фейки ---

type fakeJobService struct {
	jobs      map[uuid.UUID]*ports.Job
	duplicate *ports.Job
	lastReq   ports.NewJob
}

func newFakeJobService() *fakeJobService {
	return &fakeJobService{jobs: map[uuid.UUID]*ports.Job{}}
}

func (s *fakeJobService) CheckDuplicate(_ context.Context, _ string, _ ports.ToolType, _ int64) error {
	if s.duplicate != nil {
		return &domain.ErrDuplicateJob{JobID: s.duplicate.ID}
	}
	return nil
}

func (s *fakeJobService) Create(_ context.Context, req ports.NewJob) (*ports.Job, error) {
	if s.duplicate != nil {
		return nil, &domain.ErrDuplicateJob{JobID: s.duplicate.ID}
	}
	s.lastReq = req
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
	s.jobs[job.ID] = job
	return job, nil
}

func (s *fakeJobService) GetByID(_ context.Context, id uuid.UUID) (*ports.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (s *fakeJobService) ListRecent(_ context.Context, clientIP string) ([]*ports.Job, error) {
	var out []*ports.Job
	for _, job := range s.jobs {
		if job.ClientIP == clientIP {
			out = append(out, job)
		}
	}
	return out, nil
}

type fakeFileRepo struct {
	uploaded  []*ports.UploadedFile
	converted map[uuid.UUID]*ports.ConvertedFile
	downloads int
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{converted: map[uuid.UUID]*ports.ConvertedFile{}}
}

func (r *fakeFileRepo) CreateUploaded(_ context.Context, f *ports.UploadedFile) error {
	r.uploaded = append(r.uploaded, f)
	return nil
}

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
		return nil, sql.ErrNoRows
	}
	return f, nil
}

func (r *fakeFileRepo) GetConvertedByJob(_ context.Context, jobID uuid.UUID) (*ports.ConvertedFile, error) {
	for _, f := range r.converted {
		if f.JobID == jobID {
			return f, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeFileRepo) RecordDownload(_ context.Context, id uuid.UUID) error {
	r.downloads++
	return nil
}

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

type fakeStorage struct {
	blobs map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{blobs: map[string][]byte{}}
}

func (s *fakeStorage) SaveUpload(_ context.Context, originalName string, r io.Reader, size int64, contentType string) (*ports.SavedUpload, error) {
	key := "uploads/2026/01/01/abcd1234_" + originalName
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.blobs[key] = body
	return &ports.SavedUpload{Key: key, ContentType: contentType, Size: size}, nil
}

func (s *fakeStorage) SaveOutput(_ context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	key := "outputs/2026/01/01/abcd1234_" + name
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.blobs[key] = body
	return key, nil
}

func (s *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, int64, error) {
	body, ok := s.blobs[key]
	if !ok {
		return nil, 0, fmt.Errorf("no blob %q", key)
	}
	return io.NopCloser(bytes.NewReader(body)), int64(len(body)), nil
}

func (s *fakeStorage) Remove(_ context.Context, key string) error {
	delete(s.blobs, key)
	return nil
}

// fakeRunner завершает задачу и регистрирует результат как у настоящего раннера
type fakeRunner struct {
	jobs  *fakeJobService
	files *fakeFileRepo
	fail  string
}

func (r *fakeRunner) Execute(_ context.Context, jobID uuid.UUID) error {
	job := r.jobs.jobs[jobID]
	now := time.Now()
	if r.fail != "" {
		job.Status = ports.StatusFailed
		job.ErrorMessage = &r.fail
		job.CompletedAt = &now
		return nil
	}
	key := "outputs/2026/01/01/abcd1234_out." + job.OutputFormat
	job.Status = ports.StatusCompleted
	job.OutputKey = &key
	job.CompletedAt = &now
	r.files.CreateConverted(context.Background(), &ports.ConvertedFile{
		JobID:            jobID,
		OutputKey:        key,
		OutputFormat:     job.OutputFormat,
		OriginalFilename: "out." + job.OutputFormat,
		FileSize:         3,
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Hour),
	})
	return nil
}

type testEnv struct {
	jobs    *fakeJobService
	files   *fakeFileRepo
	storage *fakeStorage
	runner  *fakeRunner
	deps    *ConvertDeps
}

func newTestEnv() *testEnv {
	jobs := newFakeJobService()
	files := newFakeFileRepo()
	storage := newFakeStorage()
	runner := &fakeRunner{jobs: jobs, files: files}
	return &testEnv{
		jobs:    jobs,
		files:   files,
		storage: storage,
		runner:  runner,
		deps: &ConvertDeps{
			Jobs:          jobs,
			Files:         files,
			Storage:       storage,
			Runner:        runner,
			Pool:          workers.NewPool(1, runner),
			Async:         false,
			MaxUploadSize: 1 << 20,
			Log:           testLogger(),
		},
	}
}

// multipartBody собирает тело запроса: files — имя поля → имя файла.
func multipartBody(t *testing.T, fields map[string]string, files map[string][]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, names := range files {
		for _, name := range names {
			part, err := mw.CreateFormFile(field, name)
			if err != nil {
				t.Fatal(err)
			}
			part.Write([]byte("dummy content"))
		}
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func postMultipart(t *testing.T, handler http.HandlerFunc, fields map[string]string, files map[string][]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/convert", body)
	req.Header.Set("Content-Type", contentType)
	req.RemoteAddr = "10.1.2.3:55555"
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

// --- конверсионный пайплайн ---

func TestAudioConvertSyncHappyPath(t *testing.T) {
	env := newTestEnv()
	h := NewAudioHandler(env.deps, nil)

	rec := postMultipart(t, h.Convert,
		map[string]string{"output_format": "mp3", "bitrate": "192k"},
		map[string][]string{"file": {"song.wav"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["status"] != "completed" {
		t.Fatalf("job status = %v", body["status"])
	}
	if body["tool_type"] != "audio" || body["operation_type"] != "convert" {
		t.Fatalf("job = %v", body)
	}
	if body["download_url"] == nil {
		t.Fatal("completed job should carry download_url")
	}
	if env.jobs.lastReq.ClientIP != "10.1.2.3" {
		t.Fatalf("client ip = %q", env.jobs.lastReq.ClientIP)
	}
	if len(env.files.uploaded) != 1 {
		t.Fatalf("uploaded rows = %d", len(env.files.uploaded))
	}
}

func TestAudioConvertFailureReflectedInStatus(t *testing.T) {
	env := newTestEnv()
	env.runner.fail = "Conversion failed: boom"
	h := NewAudioHandler(env.deps, nil)

	rec := postMultipart(t, h.Convert,
		map[string]string{"output_format": "mp3"},
		map[string][]string{"file": {"song.wav"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["status"] != "failed" {
		t.Fatalf("status = %v", body["status"])
	}
	if body["error_message"] != "Conversion failed: boom" {
		t.Fatalf("error_message = %v", body["error_message"])
	}
	if body["download_url"] != nil {
		t.Fatal("failed job must not carry download_url")
	}
}

func TestConvertRejectsOversizedUpload(t *testing.T) {
	env := newTestEnv()
	env.deps.MaxUploadSize = 5
	h := NewAudioHandler(env.deps, nil)

	rec := postMultipart(t, h.Convert,
		map[string]string{"output_format": "mp3"},
		map[string][]string{"file": {"song.wav"}})

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["max_size"] != float64(5) {
		t.Fatalf("max_size = %v", body["max_size"])
	}
}

func TestConvertRejectsDuplicateJob(t *testing.T) {
	env := newTestEnv()
	existing := &ports.Job{ID: uuid.New()}
	env.jobs.duplicate = existing
	h := NewAudioHandler(env.deps, nil)

	rec := postMultipart(t, h.Convert,
		map[string]string{"output_format": "mp3"},
		map[string][]string{"file": {"song.wav"}})

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["job_id"] != existing.ID.String() {
		t.Fatalf("job_id = %v", body["job_id"])
	}
	// отклонённая загрузка не должна оставлять блобов и записей
	if len(env.storage.blobs) != 0 {
		t.Fatalf("storage holds %d blob(s) after 409", len(env.storage.blobs))
	}
	if len(env.files.uploaded) != 0 {
		t.Fatalf("uploaded rows = %d after 409", len(env.files.uploaded))
	}
}

func TestAsyncConvertRespondsWithPendingJob(t *testing.T) {
	env := newTestEnv()
	env.deps.Async = true
	h := NewAudioHandler(env.deps, nil)

	rec := postMultipart(t, h.Convert,
		map[string]string{"output_format": "mp3"},
		map[string][]string{"file": {"song.wav"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["status"] != "pending" {
		t.Fatalf("status = %v", body["status"])
	}
	if body["download_url"] != nil {
		t.Fatal("pending job must not carry download_url")
	}
}

func TestAsyncConvertRejectsWhenQueueFull(t *testing.T) {
	env := newTestEnv()
	env.deps.Async = true
	// воркеры не запущены — забиваем буфер очереди до отказа
	for env.deps.Pool.Enqueue(uuid.New()) == nil {
	}
	h := NewAudioHandler(env.deps, nil)

	rec := postMultipart(t, h.Convert,
		map[string]string{"output_format": "mp3"},
		map[string][]string{"file": {"song.wav"}})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["error"] != "Server is busy. Please try again later." {
		t.Fatalf("error = %v", body["error"])
	}
}

// --- валидация форм ---

func TestAudioConvertValidation(t *testing.T) {
	env := newTestEnv()
	h := NewAudioHandler(env.deps, nil)

	cases := []struct {
		name   string
		fields map[string]string
		files  map[string][]string
		field  string
	}{
		{"missing file", map[string]string{"output_format": "mp3"}, nil, "file"},
		{"bad format", map[string]string{"output_format": "exe"},
			map[string][]string{"file": {"a.wav"}}, "output_format"},
		{"sample rate out of range", map[string]string{"output_format": "mp3", "sample_rate": "700"},
			map[string][]string{"file": {"a.wav"}}, "sample_rate"},
		{"channels out of range", map[string]string{"output_format": "mp3", "channels": "12"},
			map[string][]string{"file": {"a.wav"}}, "channels"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postMultipart(t, h.Convert, tc.fields, tc.files)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			body := decodeJSON(t, rec)
			details, _ := body["details"].(map[string]any)
			if _, ok := details[tc.field]; !ok {
				t.Fatalf("details = %v, want field %q", body, tc.field)
			}
		})
	}
}

func TestAudioTrimValidation(t *testing.T) {
	env := newTestEnv()
	h := NewAudioHandler(env.deps, nil)

	cases := []struct {
		name   string
		fields map[string]string
		field  string
	}{
		{"missing start", map[string]string{"end_time": "10"}, "start_time"},
		{"negative start", map[string]string{"start_time": "-1", "end_time": "10"}, "start_time"},
		{"end before start", map[string]string{"start_time": "10", "end_time": "5"}, "end_time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postMultipart(t, h.Trim, tc.fields, map[string][]string{"file": {"a.mp3"}})
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			body := decodeJSON(t, rec)
			details, _ := body["details"].(map[string]any)
			if _, ok := details[tc.field]; !ok {
				t.Fatalf("details = %v, want %q", body, tc.field)
			}
		})
	}
}

func TestAudioTrimDefaultsToInputFormat(t *testing.T) {
	env := newTestEnv()
	h := NewAudioHandler(env.deps, nil)

	rec := postMultipart(t, h.Trim,
		map[string]string{"start_time": "1", "end_time": "5"},
		map[string][]string{"file": {"voice.ogg"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env.jobs.lastReq.OutputFormat != "ogg" {
		t.Fatalf("output format = %q", env.jobs.lastReq.OutputFormat)
	}
	if env.jobs.lastReq.Options["copy_mode"] != true {
		t.Fatalf("copy_mode = %v", env.jobs.lastReq.Options["copy_mode"])
	}
}

func TestAudioExtractRequiresVideoInput(t *testing.T) {
	env := newTestEnv()
	h := NewAudioHandler(env.deps, nil)

	rec := postMultipart(t, h.Extract,
		map[string]string{"output_format": "mp3"},
		map[string][]string{"file": {"song.mp3"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = postMultipart(t, h.Extract,
		map[string]string{"output_format": "mp3"},
		map[string][]string{"file": {"movie.mkv"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env.jobs.lastReq.Operation != ports.OpExtract {
		t.Fatalf("operation = %q", env.jobs.lastReq.Operation)
	}
}

func TestVideoConvertValidation(t *testing.T) {
	env := newTestEnv()
	h := NewVideoHandler(env.deps, nil)

	rec := postMultipart(t, h.Convert,
		map[string]string{"output_format": "exe"},
		map[string][]string{"file": {"a.avi"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format status = %d", rec.Code)
	}

	rec = postMultipart(t, h.Convert,
		map[string]string{"output_format": "mp4", "resolution": "huge"},
		map[string][]string{"file": {"a.avi"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad resolution status = %d", rec.Code)
	}

	rec = postMultipart(t, h.Convert,
		map[string]string{"output_format": "mp4", "resolution": "1280x720"},
		map[string][]string{"file": {"a.avi"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestImageConvertValidation(t *testing.T) {
	env := newTestEnv()
	h := NewImageHandler(env.deps, nil)

	rec := postMultipart(t, h.Convert,
		map[string]string{"output_format": "svg"},
		map[string][]string{"file": {"a.png"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("svg output status = %d", rec.Code)
	}

	rec = postMultipart(t, h.Convert,
		map[string]string{"output_format": "webp", "quality": "200"},
		map[string][]string{"file": {"a.png"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("quality status = %d", rec.Code)
	}

	rec = postMultipart(t, h.Convert,
		map[string]string{"output_format": "webp", "quality": "80"},
		map[string][]string{"file": {"a.png"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestPDFMergeValidation(t *testing.T) {
	env := newTestEnv()
	h := NewPDFHandler(env.deps)

	rec := postMultipart(t, h.Merge, nil, map[string][]string{"files": {"one.pdf"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("single file status = %d", rec.Code)
	}

	rec = postMultipart(t, h.Merge, nil, map[string][]string{"files": {"one.pdf", "two.jpg"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-pdf status = %d", rec.Code)
	}

	rec = postMultipart(t, h.Merge, nil, map[string][]string{"files": {"one.pdf", "two.pdf"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	keys, ok := env.jobs.lastReq.Options["input_keys"].([]string)
	if !ok || len(keys) != 2 {
		t.Fatalf("input_keys = %v", env.jobs.lastReq.Options["input_keys"])
	}
}

func TestPDFValidation(t *testing.T) {
	env := newTestEnv()
	h := NewPDFHandler(env.deps)
	pdfFile := map[string][]string{"file": {"doc.pdf"}}

	cases := []struct {
		name    string
		handler http.HandlerFunc
		fields  map[string]string
	}{
		{"compress bad quality", h.Compress, map[string]string{"quality": "ultra"}},
		{"rotate bad angle", h.Rotate, map[string]string{"rotation": "45"}},
		{"rotate bad pages", h.Rotate, map[string]string{"rotation": "90", "pages": "a,b"}},
		{"delete pages missing", h.DeletePages, nil},
		{"reorder missing", h.Reorder, nil},
		{"protect short password", h.Protect, map[string]string{"password": "abc"}},
		{"unlock missing password", h.Unlock, nil},
		{"split bad ranges", h.Split, map[string]string{"page_ranges": "5-2"}},
		{"to images bad format", h.PDFToImages, map[string]string{"output_format": "bmp"}},
		{"to images bad dpi", h.PDFToImages, map[string]string{"output_format": "png", "dpi": "1200"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postMultipart(t, tc.handler, tc.fields, pdfFile)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPDFCompressDefaultsToMedium(t *testing.T) {
	env := newTestEnv()
	h := NewPDFHandler(env.deps)

	rec := postMultipart(t, h.Compress, nil, map[string][]string{"file": {"doc.pdf"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env.jobs.lastReq.Options["quality"] != "medium" {
		t.Fatalf("quality = %v", env.jobs.lastReq.Options["quality"])
	}
}

// --- core ---

func coreRouter(h *CoreHandler) chi.Router {
	r := chi.NewRouter()
	r.Get("/api/core/jobs/{job_id}/", h.GetJob)
	r.Get("/api/core/download/{file_id}/", h.Download)
	return r
}

func TestGetJobNotFound(t *testing.T) {
	env := newTestEnv()
	h := NewCoreHandler(env.jobs, env.files, env.storage, testLogger())
	r := coreRouter(h)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		req := httptest.NewRequest(http.MethodGet, "/api/core/jobs/"+id+"/", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d for id %q", rec.Code, id)
		}
	}
}

func TestDownloadExpired(t *testing.T) {
	env := newTestEnv()
	h := NewCoreHandler(env.jobs, env.files, env.storage, testLogger())
	r := coreRouter(h)

	cf := &ports.ConvertedFile{
		ID:        uuid.New(),
		JobID:     uuid.New(),
		OutputKey: "outputs/x",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	env.files.converted[cf.ID] = cf

	req := httptest.NewRequest(http.MethodGet, "/api/core/download/"+cf.ID.String()+"/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusGone {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["error"] != "File has expired" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestDownloadStreamsWithCleanName(t *testing.T) {
	env := newTestEnv()
	h := NewCoreHandler(env.jobs, env.files, env.storage, testLogger())
	r := coreRouter(h)

	key := "outputs/2026/01/01/abcd1234_song.mp3"
	env.storage.blobs[key] = []byte("mp3 bytes")
	cf := &ports.ConvertedFile{
		ID:               uuid.New(),
		JobID:            uuid.New(),
		OutputKey:        key,
		OriginalFilename: "song.mp3",
		ExpiresAt:        time.Now().Add(time.Hour),
	}
	env.files.converted[cf.ID] = cf

	req := httptest.NewRequest(http.MethodGet, "/api/core/download/"+cf.ID.String()+"/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, `"song.mp3"`) {
		t.Fatalf("Content-Disposition = %q", got)
	}
	if rec.Body.String() != "mp3 bytes" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if env.files.downloads != 1 {
		t.Fatalf("downloads = %d", env.files.downloads)
	}
}

func TestListJobsFiltersByClientIP(t *testing.T) {
	env := newTestEnv()
	h := NewCoreHandler(env.jobs, env.files, env.storage, testLogger())

	mine := &ports.Job{ID: uuid.New(), ClientIP: "10.1.2.3", Status: ports.StatusPending, CreatedAt: time.Now()}
	other := &ports.Job{ID: uuid.New(), ClientIP: "10.9.9.9", Status: ports.StatusPending, CreatedAt: time.Now()}
	env.jobs.jobs[mine.ID] = mine
	env.jobs.jobs[other.ID] = other

	req := httptest.NewRequest(http.MethodGet, "/api/core/jobs/", nil)
	req.RemoteAddr = "10.1.2.3:1000"
	rec := httptest.NewRecorder()
	h.ListJobs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0]["id"] != mine.ID.String() {
		t.Fatalf("jobs = %v", out)
	}
}

// --- health ---

func TestHealthDegradedWithoutBackends(t *testing.T) {
	db, err := sql.Open("postgres", "postgres://nohost:1/none?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	h := NewHealthHandler(db, "/nonexistent/ffmpeg", t.TempDir(), true)
	req := httptest.NewRequest(http.MethodGet, "/api/health/", nil)
	rec := httptest.NewRecorder()
	h.Check(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["status"] != "degraded" {
		t.Fatalf("status field = %v", body["status"])
	}
	if body["version"] != "1.0.2" {
		t.Fatalf("version = %v", body["version"])
	}
	checks, _ := body["checks"].(map[string]any)
	if checks["database"] != "error" || checks["ffmpeg"] != "error" {
		t.Fatalf("checks = %v", checks)
	}
	if _, ok := body["details"]; !ok {
		t.Fatal("details expected when enabled")
	}
}
