package delivery

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fileforgehq/fileforge/internal/ports"
)

type CoreHandler struct {
	jobs    ports.JobService
	files   ports.FileRepo
	storage ports.StorageService
	log     *logger.ZapLogger
}

func NewCoreHandler(jobs ports.JobService, files ports.FileRepo, storage ports.StorageService, log *logger.ZapLogger) *CoreHandler {
	return &CoreHandler{jobs: jobs, files: files, storage: storage, log: log}
}

// ListJobs — последние задачи клиентского IP.
func (h *CoreHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListRecent(r.Context(), ClientIP(r))
	if err != nil {
		h.log.Log(logger.LogEntry{Level: "error", Message: "list jobs", Service: "delivery", Error: err})
		writeError(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	out := make([]jobJSON, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, serializeJob(r.Context(), h.files, job))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CoreHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "job_id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, serializeJob(r.Context(), h.files, job))
}

// Download отдаёт результат конвертации вложением с чистым именем.
func (h *CoreHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "file_id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	cf, err := h.files.GetConverted(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	if cf.Expired(time.Now()) {
		writeError(w, http.StatusGone, "File has expired")
		return
	}

	blob, size, err := h.storage.Open(r.Context(), cf.OutputKey)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found on server")
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", cf.OriginalFilename))
	w.Header().Set("Content-Type", "application/octet-stream")
	if size > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	}

	if _, err := io.Copy(w, blob); err != nil {
		h.log.Log(logger.LogEntry{Level: "warn", Message: "stream download " + id.String(), Service: "delivery", Error: err})
		return
	}

	if err := h.files.RecordDownload(r.Context(), id); err != nil {
		h.log.Log(logger.LogEntry{Level: "warn", Message: "record download " + id.String(), Service: "delivery", Error: err})
	}
}
