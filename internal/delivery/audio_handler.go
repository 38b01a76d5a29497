package delivery

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fileforgehq/fileforge/internal/config"
	"github.com/fileforgehq/fileforge/internal/media"
	"github.com/fileforgehq/fileforge/internal/ports"
)

type AudioHandler struct {
	deps   *ConvertDeps
	ffmpeg *media.FFmpeg
}

func NewAudioHandler(deps *ConvertDeps, ffmpeg *media.FFmpeg) *AudioHandler {
	return &AudioHandler{deps: deps, ffmpeg: ffmpeg}
}

func (h *AudioHandler) Convert(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	outputFormat := strings.ToLower(strings.TrimSpace(r.FormValue("output_format")))
	if _, ok := media.AudioCodecFor(outputFormat); !ok {
		writeInvalid(w, "output_format", "Unsupported audio format.")
		return
	}

	options := map[string]any{}
	if v := strings.TrimSpace(r.FormValue("bitrate")); v != "" {
		options["bitrate"] = v
	}
	if v, ok := formInt(r, "sample_rate"); ok {
		if v < 8000 || v > 192000 {
			writeInvalid(w, "sample_rate", rangeError("sample_rate", 8000, 192000))
			return
		}
		options["sample_rate"] = v
	}
	if v, ok := formInt(r, "channels"); ok {
		if v < 1 || v > 8 {
			writeInvalid(w, "channels", rangeError("channels", 1, 8))
			return
		}
		options["channels"] = v
	}

	h.deps.startJob(w, r, ports.ToolAudio, ports.OpConvert,
		extOf(fh.Filename), outputFormat, options, []*multipart.FileHeader{fh})
}

func (h *AudioHandler) Trim(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	start, okStart := formFloat(r, "start_time")
	end, okEnd := formFloat(r, "end_time")
	switch {
	case !okStart || start < 0:
		writeInvalid(w, "start_time", "A non-negative number is required.")
		return
	case !okEnd || end < 0:
		writeInvalid(w, "end_time", "A non-negative number is required.")
		return
	case end <= start:
		writeInvalid(w, "end_time", "End time must be greater than start time.")
		return
	}

	options := map[string]any{
		"start_time": start,
		"end_time":   end,
		"copy_mode":  formBool(r, "copy_mode", true),
	}

	outputFormat := strings.ToLower(strings.TrimSpace(r.FormValue("output_format")))
	if outputFormat == "" {
		outputFormat = extOf(fh.Filename)
	}

	h.deps.startJob(w, r, ports.ToolAudio, ports.OpTrim,
		extOf(fh.Filename), outputFormat, options, []*multipart.FileHeader{fh})
}

// Extract — аудиодорожка из видеофайла.
func (h *AudioHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	outputFormat := strings.ToLower(strings.TrimSpace(r.FormValue("output_format")))
	if _, ok := media.AudioCodecFor(outputFormat); !ok {
		writeInvalid(w, "output_format", "Unsupported audio format.")
		return
	}
	if !config.VideoFormats[extOf(fh.Filename)] {
		writeInvalid(w, "file", "A video file is required.")
		return
	}

	options := map[string]any{}
	if v := strings.TrimSpace(r.FormValue("bitrate")); v != "" {
		options["bitrate"] = v
	}

	h.deps.startJob(w, r, ports.ToolAudio, ports.OpExtract,
		extOf(fh.Filename), outputFormat, options, []*multipart.FileHeader{fh})
}

// Info — синхронный ffprobe без создания задачи.
func (h *AudioHandler) Info(w http.ResponseWriter, r *http.Request) {
	probeUpload(w, r, h.ffmpeg)
}

// probeUpload стейджит загрузку во временный файл и возвращает метаданные.
func probeUpload(w http.ResponseWriter, r *http.Request, ffmpeg *media.FFmpeg) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	path, cleanup, err := stageTemp(fh)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stage file: "+err.Error())
		return
	}
	defer cleanup()

	info, err := ffmpeg.Probe(r.Context(), path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "probe failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// stageTemp кладёт multipart-файл во временный каталог.
func stageTemp(fh *multipart.FileHeader) (string, func(), error) {
	src, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	dir, err := os.MkdirTemp("", "fileforge-probe-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, "input"+strings.ToLower(filepath.Ext(fh.Filename)))
	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		cleanup()
		return "", nil, err
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
