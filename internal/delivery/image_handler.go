package delivery

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/fileforgehq/fileforge/internal/imagetool"
	"github.com/fileforgehq/fileforge/internal/ports"
)

type ImageHandler struct {
	deps   *ConvertDeps
	magick *imagetool.Magick
}

func NewImageHandler(deps *ConvertDeps, magick *imagetool.Magick) *ImageHandler {
	return &ImageHandler{deps: deps, magick: magick}
}

func (h *ImageHandler) Convert(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	outputFormat := strings.ToLower(strings.TrimSpace(r.FormValue("output_format")))
	if !imagetool.SupportedOutput(outputFormat) {
		writeInvalid(w, "output_format", "Unsupported image format.")
		return
	}

	options := map[string]any{}
	if v, ok := formInt(r, "quality"); ok {
		if v < 1 || v > 100 {
			writeInvalid(w, "quality", rangeError("quality", 1, 100))
			return
		}
		options["quality"] = v
	}
	if v, ok := formInt(r, "width"); ok {
		if v < 1 {
			writeInvalid(w, "width", "A positive number is required.")
			return
		}
		options["width"] = v
	}
	if v, ok := formInt(r, "height"); ok {
		if v < 1 {
			writeInvalid(w, "height", "A positive number is required.")
			return
		}
		options["height"] = v
	}

	h.deps.startJob(w, r, ports.ToolImage, ports.OpConvert,
		extOf(fh.Filename), outputFormat, options, []*multipart.FileHeader{fh})
}

// Info — синхронный identify без создания задачи.
func (h *ImageHandler) Info(w http.ResponseWriter, r *http.Request) {
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

	info, err := h.magick.Identify(r.Context(), path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "identify failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}
