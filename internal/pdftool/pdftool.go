package pdftool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ToolError — ошибка внешнего PDF-инструмента с его выводом.
type ToolError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Toolchain — пути к бинарям poppler/qpdf/ghostscript/imagemagick.
type Toolchain struct {
	PdftoppmPath    string
	PdfunitePath    string
	PdfseparatePath string
	PdftotextPath   string
	QpdfPath        string
	GsPath          string
	MagickPath      string
	Timeout         time.Duration
}

func NewToolchain() *Toolchain {
	return &Toolchain{
		PdftoppmPath:    "pdftoppm",
		PdfunitePath:    "pdfunite",
		PdfseparatePath: "pdfseparate",
		PdftotextPath:   "pdftotext",
		QpdfPath:        "qpdf",
		GsPath:          "gs",
		MagickPath:      "convert",
		Timeout:         5 * time.Minute,
	}
}

func (t *Toolchain) run(ctx context.Context, tool, path string, args ...string) error {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &ToolError{Tool: tool, Err: fmt.Errorf("timeout after %s", t.Timeout)}
		}
		const maxOut = 500
		if len(out) > maxOut {
			out = out[len(out)-maxOut:]
		}
		return &ToolError{Tool: tool, Output: string(bytes.TrimSpace(out)), Err: err}
	}
	return nil
}

// Merge склеивает PDF в порядке inputs через pdfunite.
func (t *Toolchain) Merge(ctx context.Context, inputs []string, output string) error {
	if len(inputs) < 2 {
		return fmt.Errorf("merge requires at least 2 files, got %d", len(inputs))
	}
	args := append(append([]string{}, inputs...), output)
	return t.run(ctx, "pdfunite", t.PdfunitePath, args...)
}

// SplitAll раскладывает PDF постранично: page-1.pdf, page-2.pdf, ...
func (t *Toolchain) SplitAll(ctx context.Context, input, dir string) ([]string, error) {
	pattern := filepath.Join(dir, "page-%d.pdf")
	if err := t.run(ctx, "pdfseparate", t.PdfseparatePath, input, pattern); err != nil {
		return nil, err
	}
	return collectNumbered(dir, "page-", ".pdf")
}

// SplitRanges вырезает каждый диапазон в свой файл split_N.pdf через qpdf.
func (t *Toolchain) SplitRanges(ctx context.Context, input, dir string, ranges []PageRange) ([]string, error) {
	var outputs []string
	for i, r := range ranges {
		output := filepath.Join(dir, fmt.Sprintf("split_%d.pdf", i+1))
		err := t.run(ctx, "qpdf", t.QpdfPath,
			"--empty", "--pages", input, r.String(), "--", output)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, output)
	}
	return outputs, nil
}

// Compress пережимает PDF гостскриптом. quality: low | medium | high —
// степень сжатия, high даёт самый маленький файл.
func (t *Toolchain) Compress(ctx context.Context, input, output, quality string) error {
	var setting string
	switch quality {
	case "high":
		setting = "/screen"
	case "medium":
		setting = "/ebook"
	case "low":
		setting = "/printer"
	default:
		return fmt.Errorf("unknown compression quality %q", quality)
	}
	return t.run(ctx, "gs", t.GsPath,
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS="+setting,
		"-dNOPAUSE", "-dQUIET", "-dBATCH",
		"-sOutputFile="+output,
		input,
	)
}

// Rotate поворачивает страницы. angle ∈ {90, 180, 270}, pages пустой — все.
func (t *Toolchain) Rotate(ctx context.Context, input, output string, angle int, pages []int) error {
	if angle != 90 && angle != 180 && angle != 270 {
		return fmt.Errorf("rotation must be 90, 180 or 270, got %d", angle)
	}
	spec := fmt.Sprintf("+%d", angle)
	if len(pages) > 0 {
		spec += ":" + joinPages(pages)
	}
	return t.run(ctx, "qpdf", t.QpdfPath, "--rotate="+spec, input, output)
}

// DeletePages удаляет указанные страницы, собирая документ из оставшихся.
func (t *Toolchain) DeletePages(ctx context.Context, input, output string, pages []int, total int) error {
	kept := complementPages(total, pages)
	if len(kept) == 0 {
		return fmt.Errorf("cannot delete every page of the document")
	}
	return t.run(ctx, "qpdf", t.QpdfPath,
		"--empty", "--pages", input, joinPages(kept), "--", output)
}

// Reorder пересобирает документ в порядке order (1-indexed).
func (t *Toolchain) Reorder(ctx context.Context, input, output string, order []int) error {
	if len(order) == 0 {
		return fmt.Errorf("page order is empty")
	}
	return t.run(ctx, "qpdf", t.QpdfPath,
		"--empty", "--pages", input, joinPages(order), "--", output)
}

// Protect ставит пароли: user открывает, owner редактирует. AES-256.
func (t *Toolchain) Protect(ctx context.Context, input, output, userPW, ownerPW string) error {
	if ownerPW == "" {
		ownerPW = userPW
	}
	return t.run(ctx, "qpdf", t.QpdfPath,
		"--encrypt", userPW, ownerPW, "256", "--", input, output)
}

// Unlock снимает защиту с запароленного PDF.
func (t *Toolchain) Unlock(ctx context.Context, input, output, password string) error {
	return t.run(ctx, "qpdf", t.QpdfPath,
		"--password="+password, "--decrypt", input, output)
}

// ToImages рендерит страницы в png/jpg через pdftoppm.
func (t *Toolchain) ToImages(ctx context.Context, input, dir, format string, dpi int) ([]string, error) {
	var flag, ext string
	switch strings.ToLower(format) {
	case "png":
		flag, ext = "-png", ".png"
	case "jpg", "jpeg":
		flag, ext = "-jpeg", ".jpg"
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	if dpi <= 0 {
		dpi = 200
	}
	base := filepath.Join(dir, "page")
	err := t.run(ctx, "pdftoppm", t.PdftoppmPath,
		flag, "-r", strconv.Itoa(dpi), input, base)
	if err != nil {
		return nil, err
	}
	return collectNumbered(dir, "page-", ext)
}

// FromImages собирает PDF из изображений через ImageMagick.
func (t *Toolchain) FromImages(ctx context.Context, images []string, output, pageSize string) error {
	if len(images) == 0 {
		return fmt.Errorf("no images given")
	}
	var page string
	switch strings.ToLower(pageSize) {
	case "", "a4":
		page = "a4"
	case "letter":
		page = "letter"
	default:
		return fmt.Errorf("page size must be A4 or Letter, got %q", pageSize)
	}
	args := append([]string{}, images...)
	args = append(args, "-page", page, output)
	return t.run(ctx, "convert", t.MagickPath, args...)
}

// ExtractText выгружает текстовый слой через pdftotext.
func (t *Toolchain) ExtractText(ctx context.Context, input, output string) error {
	return t.run(ctx, "pdftotext", t.PdftotextPath, input, output)
}

// collectNumbered собирает prefixN.ext из dir, отсортированные по номеру
// страницы. pdftoppm/pdfseparate нумеруют с 1 без ведущих нулей.
func collectNumbered(dir, prefix, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		num := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		files = append(files, numbered{n: n, path: filepath.Join(dir, name)})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no pages generated")
	}

	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}
