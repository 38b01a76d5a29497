package delivery

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/fileforgehq/fileforge/internal/config"
	"github.com/fileforgehq/fileforge/internal/pdftool"
	"github.com/fileforgehq/fileforge/internal/ports"
)

const (
	mergeMaxFiles  = 50
	imagesMaxFiles = 100
	minPasswordLen = 4
)

type PDFHandler struct {
	deps *ConvertDeps
}

func NewPDFHandler(deps *ConvertDeps) *PDFHandler {
	return &PDFHandler{deps: deps}
}

func (h *PDFHandler) Merge(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	files := filesField(r)
	if len(files) < 2 || len(files) > mergeMaxFiles {
		writeInvalid(w, "files", fmt.Sprintf("Between 2 and %d PDF files are required.", mergeMaxFiles))
		return
	}
	for _, fh := range files {
		if extOf(fh.Filename) != "pdf" {
			writeInvalid(w, "files", "All files must be PDF documents.")
			return
		}
	}

	h.deps.startJob(w, r, ports.ToolPDF, ports.OpMerge, "pdf", "pdf", nil, files)
}

func (h *PDFHandler) Split(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	options := map[string]any{}
	if spec := strings.TrimSpace(r.FormValue("page_ranges")); spec != "" {
		if _, err := pdftool.ParsePageRanges(spec); err != nil {
			writeInvalid(w, "page_ranges", err.Error())
			return
		}
		options["page_ranges"] = spec
	}

	h.deps.startJob(w, r, ports.ToolPDF, ports.OpSplit,
		"pdf", "zip", options, []*multipart.FileHeader{fh})
}

func (h *PDFHandler) Compress(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	quality := strings.ToLower(strings.TrimSpace(r.FormValue("quality")))
	if quality == "" {
		quality = "medium"
	}
	switch quality {
	case "low", "medium", "high":
	default:
		writeInvalid(w, "quality", "Quality must be low, medium or high.")
		return
	}

	h.deps.startJob(w, r, ports.ToolPDF, ports.OpCompress,
		"pdf", "pdf", map[string]any{"quality": quality}, []*multipart.FileHeader{fh})
}

func (h *PDFHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	rotation, ok := formInt(r, "rotation")
	if !ok || (rotation != 90 && rotation != 180 && rotation != 270) {
		writeInvalid(w, "rotation", "Rotation must be 90, 180 or 270.")
		return
	}

	options := map[string]any{"rotation": rotation}
	if spec := strings.TrimSpace(r.FormValue("pages")); spec != "" {
		if _, err := pdftool.ParsePageList(spec); err != nil {
			writeInvalid(w, "pages", err.Error())
			return
		}
		options["pages"] = spec
	}

	h.deps.startJob(w, r, ports.ToolPDF, ports.OpRotate,
		"pdf", "pdf", options, []*multipart.FileHeader{fh})
}

func (h *PDFHandler) DeletePages(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	spec := strings.TrimSpace(r.FormValue("pages"))
	if _, err := pdftool.ParsePageList(spec); err != nil {
		writeInvalid(w, "pages", err.Error())
		return
	}

	h.deps.startJob(w, r, ports.ToolPDF, ports.OpDeletePages,
		"pdf", "pdf", map[string]any{"pages": spec}, []*multipart.FileHeader{fh})
}

func (h *PDFHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	spec := strings.TrimSpace(r.FormValue("order"))
	if _, err := pdftool.ParsePageList(spec); err != nil {
		writeInvalid(w, "order", err.Error())
		return
	}

	h.deps.startJob(w, r, ports.ToolPDF, ports.OpReorder,
		"pdf", "pdf", map[string]any{"order": spec}, []*multipart.FileHeader{fh})
}

func (h *PDFHandler) Protect(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	password := r.FormValue("password")
	if len(password) < minPasswordLen {
		writeInvalid(w, "password", fmt.Sprintf("Password must be at least %d characters.", minPasswordLen))
		return
	}

	options := map[string]any{"password": password}
	if owner := r.FormValue("owner_password"); owner != "" {
		options["owner_password"] = owner
	}

	h.deps.startJob(w, r, ports.ToolPDF, ports.OpProtect,
		"pdf", "pdf", options, []*multipart.FileHeader{fh})
}

func (h *PDFHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	password := r.FormValue("password")
	if password == "" {
		writeInvalid(w, "password", "This field is required.")
		return
	}

	h.deps.startJob(w, r, ports.ToolPDF, ports.OpUnlock,
		"pdf", "pdf", map[string]any{"password": password}, []*multipart.FileHeader{fh})
}

func (h *PDFHandler) ImagesToPDF(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	files := filesField(r)
	if len(files) < 1 || len(files) > imagesMaxFiles {
		writeInvalid(w, "files", fmt.Sprintf("Between 1 and %d image files are required.", imagesMaxFiles))
		return
	}
	for _, fh := range files {
		if !config.ImageFormats[extOf(fh.Filename)] {
			writeInvalid(w, "files", "All files must be images.")
			return
		}
	}

	pageSize := strings.TrimSpace(r.FormValue("page_size"))
	switch strings.ToLower(pageSize) {
	case "", "a4":
		pageSize = "A4"
	case "letter":
		pageSize = "Letter"
	default:
		writeInvalid(w, "page_size", "Page size must be A4 or Letter.")
		return
	}

	h.deps.startJob(w, r, ports.ToolPDF, ports.OpConvert,
		extOf(files[0].Filename), "pdf", map[string]any{"page_size": pageSize}, files)
}

func (h *PDFHandler) PDFToImages(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	outputFormat := strings.ToLower(strings.TrimSpace(r.FormValue("output_format")))
	if outputFormat != "png" && outputFormat != "jpg" {
		writeInvalid(w, "output_format", "Output format must be png or jpg.")
		return
	}

	options := map[string]any{}
	if dpi, ok := formInt(r, "dpi"); ok {
		if dpi < 72 || dpi > 600 {
			writeInvalid(w, "dpi", rangeError("dpi", 72, 600))
			return
		}
		options["dpi"] = dpi
	}

	h.deps.startJob(w, r, ports.ToolPDF, ports.OpConvert,
		"pdf", outputFormat, options, []*multipart.FileHeader{fh})
}

func (h *PDFHandler) ExtractText(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	fh := requireFile(w, r)
	if fh == nil {
		return
	}

	h.deps.startJob(w, r, ports.ToolPDF, ports.OpExtract,
		"pdf", "txt", nil, []*multipart.FileHeader{fh})
}

// Info — метаданные PDF без создания задачи.
func (h *PDFHandler) Info(w http.ResponseWriter, r *http.Request) {
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

	info, err := pdftool.GetInfo(path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "failed to read PDF: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}
