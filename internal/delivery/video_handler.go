package delivery

import (
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"

	"github.com/fileforgehq/fileforge/internal/media"
	"github.com/fileforgehq/fileforge/internal/ports"
)

type VideoHandler struct {
	deps   *ConvertDeps
	ffmpeg *media.FFmpeg
}

func NewVideoHandler(deps *ConvertDeps, ffmpeg *media.FFmpeg) *VideoHandler {
	return &VideoHandler{deps: deps, ffmpeg: ffmpeg}
}

var resolutionRe = regexp.MustCompile(`^\d{2,5}x\d{2,5}$`)

func (h *VideoHandler) Convert(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	outputFormat := strings.ToLower(strings.TrimSpace(r.FormValue("output_format")))
	if _, ok := media.VideoCodecFor(outputFormat); !ok {
		writeInvalid(w, "output_format", "Unsupported video format.")
		return
	}

	options := map[string]any{}
	if v := strings.TrimSpace(r.FormValue("resolution")); v != "" {
		if !resolutionRe.MatchString(v) {
			writeInvalid(w, "resolution", "Use WIDTHxHEIGHT, e.g. 1280x720.")
			return
		}
		options["resolution"] = v
	}
	if v := strings.TrimSpace(r.FormValue("video_bitrate")); v != "" {
		options["video_bitrate"] = v
	}
	if v := strings.TrimSpace(r.FormValue("audio_bitrate")); v != "" {
		options["audio_bitrate"] = v
	}

	h.deps.startJob(w, r, ports.ToolVideo, ports.OpConvert,
		extOf(fh.Filename), outputFormat, options, []*multipart.FileHeader{fh})
}

func (h *VideoHandler) Trim(w http.ResponseWriter, r *http.Request) {
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

	h.deps.startJob(w, r, ports.ToolVideo, ports.OpTrim,
		extOf(fh.Filename), outputFormat, options, []*multipart.FileHeader{fh})
}

func (h *VideoHandler) Info(w http.ResponseWriter, r *http.Request) {
	probeUpload(w, r, h.ffmpeg)
}
