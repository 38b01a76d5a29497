package delivery

import (
	"context"
	"database/sql"
	"net/http"
	"os/exec"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

const (
	appVersion = "1.0.2"

	ffmpegCheckTimeout = 5 * time.Second
	minFreeDiskBytes   = 500 * 1024 * 1024
)

type HealthHandler struct {
	db         *sql.DB
	ffmpegPath string
	mediaRoot  string
	details    bool
}

func NewHealthHandler(db *sql.DB, ffmpegPath, mediaRoot string, details bool) *HealthHandler {
	return &HealthHandler{db: db, ffmpegPath: ffmpegPath, mediaRoot: mediaRoot, details: details}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{}
	details := map[string]any{}
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "error"
		details["database_error"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	ffCtx, cancel := context.WithTimeout(ctx, ffmpegCheckTimeout)
	if err := exec.CommandContext(ffCtx, h.ffmpegPath, "-version").Run(); err != nil {
		checks["ffmpeg"] = "error"
		details["ffmpeg_error"] = err.Error()
		healthy = false
	} else {
		checks["ffmpeg"] = "ok"
	}
	cancel()

	var stat unix.Statfs_t
	if err := unix.Statfs(h.mediaRoot, &stat); err != nil {
		checks["disk_space"] = "error"
		details["disk_error"] = err.Error()
		healthy = false
	} else {
		free := stat.Bavail * uint64(stat.Bsize)
		if free < minFreeDiskBytes {
			checks["disk_space"] = "warning"
		} else {
			checks["disk_space"] = "ok"
		}
		details["disk_free"] = humanize.Bytes(free)
		details["disk_total"] = humanize.Bytes(stat.Blocks * uint64(stat.Bsize))
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	body := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   appVersion,
		"checks":    checks,
	}
	if h.details {
		body["details"] = details
	}
	writeJSON(w, code, body)
}
