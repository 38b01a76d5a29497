package delivery

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/google/uuid"

	"github.com/fileforgehq/fileforge/internal/domain"
	"github.com/fileforgehq/fileforge/internal/ports"
	"github.com/fileforgehq/fileforge/internal/workers"
)

// multipart-форма спулится на диск свыше этого порога
const multipartMemory = 64 << 20

// ConvertDeps — общий набор зависимостей конверсионных хендлеров.
type ConvertDeps struct {
	Jobs          ports.JobService
	Files         ports.FileRepo
	Storage       ports.StorageService
	Runner        ports.JobRunner
	Pool          *workers.Pool
	Async         bool
	MaxUploadSize int64
	Log           *logger.ZapLogger
}

// startJob проводит запрос через общий пайплайн: гард размера, сохранение
// загрузок, гард дублей, создание задачи, запуск (sync) либо очередь (async).
// В обоих режимах ответ — JSON задачи со статусом 200.
func (d *ConvertDeps) startJob(
	w http.ResponseWriter,
	r *http.Request,
	tool ports.ToolType,
	op ports.Operation,
	inputFormat, outputFormat string,
	options map[string]any,
	uploads []*multipart.FileHeader,
) {
	ctx := r.Context()

	var totalSize int64
	for _, fh := range uploads {
		if fh.Size > d.MaxUploadSize {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
				"error":     "File too large.",
				"file_size": fh.Size,
				"max_size":  d.MaxUploadSize,
			})
			return
		}
		totalSize += fh.Size
	}

	// гард дублей до сохранения: иначе блоб от 409 повисает без хозяина
	if err := d.Jobs.CheckDuplicate(ctx, ClientIP(r), tool, totalSize); err != nil {
		var dup *domain.ErrDuplicateJob
		if errors.As(err, &dup) {
			writeDuplicate(w, dup)
			return
		}
		writeError(w, http.StatusInternalServerError, "duplicate check failed: "+err.Error())
		return
	}

	keys := make([]string, 0, len(uploads))
	type savedUpload struct {
		header *multipart.FileHeader
		saved  *ports.SavedUpload
	}
	saved := make([]savedUpload, 0, len(uploads))
	for _, fh := range uploads {
		f, err := fh.Open()
		if err != nil {
			d.discardUploads(ctx, keys)
			writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
			return
		}
		su, err := d.Storage.SaveUpload(ctx, fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
		f.Close()
		if err != nil {
			d.discardUploads(ctx, keys)
			writeError(w, http.StatusInternalServerError, "failed to store upload: "+err.Error())
			return
		}
		keys = append(keys, su.Key)
		saved = append(saved, savedUpload{header: fh, saved: su})
	}

	if options == nil {
		options = map[string]any{}
	}
	if len(keys) > 1 {
		options["input_keys"] = keys
	}

	job, err := d.Jobs.Create(ctx, ports.NewJob{
		ToolType:     tool,
		Operation:    op,
		InputKey:     keys[0],
		InputFormat:  inputFormat,
		OutputFormat: outputFormat,
		FileSize:     totalSize,
		Options:      options,
		ClientIP:     ClientIP(r),
		UserAgent:    UserAgent(r),
	})
	if err != nil {
		// задача не создана — сохранённые блобы никому не принадлежат
		d.discardUploads(ctx, keys)
		var dup *domain.ErrDuplicateJob
		if errors.As(err, &dup) {
			writeDuplicate(w, dup)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create job: "+err.Error())
		return
	}

	for _, su := range saved {
		uploaded := &ports.UploadedFile{
			ID:           uuid.New(),
			OriginalName: su.header.Filename,
			StoredKey:    su.saved.Key,
			FileType:     su.saved.ContentType,
			FileSize:     su.header.Size,
			JobID:        &job.ID,
		}
		if err := d.Files.CreateUploaded(ctx, uploaded); err != nil {
			d.Log.Log(logger.LogEntry{
				Level:   "warn",
				Message: "record uploaded file",
				Service: "delivery",
				Error:   err,
			})
		}
	}

	if d.Async {
		if err := d.Pool.Enqueue(job.ID); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Server is busy. Please try again later.")
			return
		}
	} else {
		// ошибка исполнения отражена в статусе задачи
		_ = d.Runner.Execute(ctx, job.ID)
	}

	fresh, err := d.Jobs.GetByID(ctx, job.ID)
	if err != nil {
		fresh = job
	}
	writeJSON(w, http.StatusOK, serializeJob(ctx, d.Files, fresh))
}

func writeDuplicate(w http.ResponseWriter, dup *domain.ErrDuplicateJob) {
	writeJSON(w, http.StatusConflict, map[string]any{
		"error":  "A similar job is already being processed. Please wait.",
		"job_id": dup.JobID.String(),
	})
}

func (d *ConvertDeps) discardUploads(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := d.Storage.Remove(ctx, key); err != nil {
			d.Log.Log(logger.LogEntry{
				Level:   "warn",
				Message: "remove orphan upload " + key,
				Service: "delivery",
				Error:   err,
			})
		}
	}
}
