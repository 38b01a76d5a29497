package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fileforgehq/fileforge/internal/ports"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// jobJSON — сериализация задачи в формат API.
type jobJSON struct {
	ID             string         `json:"id"`
	ToolType       string         `json:"tool_type"`
	OperationType  string         `json:"operation_type"`
	Status         string         `json:"status"`
	InputFormat    string         `json:"input_format"`
	OutputFormat   string         `json:"output_format"`
	FileSize       int64          `json:"file_size"`
	Duration       *float64       `json:"duration"`
	Options        map[string]any `json:"options"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at"`
	ErrorMessage   *string        `json:"error_message"`
	ProcessingTime *float64       `json:"processing_time"`
	DownloadURL    *string        `json:"download_url"`
}

// serializeJob подставляет download_url только для завершённых задач.
func serializeJob(ctx context.Context, files ports.FileRepo, job *ports.Job) jobJSON {
	out := jobJSON{
		ID:             job.ID.String(),
		ToolType:       string(job.ToolType),
		OperationType:  string(job.Operation),
		Status:         string(job.Status),
		InputFormat:    job.InputFormat,
		OutputFormat:   job.OutputFormat,
		FileSize:       job.FileSize,
		Duration:       job.Duration,
		Options:        job.Options,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
		ErrorMessage:   job.ErrorMessage,
		ProcessingTime: job.ProcessingTime(),
	}
	if out.Options == nil {
		out.Options = map[string]any{}
	}

	if job.Status == ports.StatusCompleted {
		if cf, err := files.GetConvertedByJob(ctx, job.ID); err == nil {
			url := "/api/core/download/" + cf.ID.String() + "/"
			out.DownloadURL = &url
		}
	}
	return out
}
