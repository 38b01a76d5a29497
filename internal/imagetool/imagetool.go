package imagetool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Поддерживаемые выходные форматы ImageMagick.
var outputFormats = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true, "gif": true,
	"bmp": true, "tiff": true, "tif": true, "ico": true, "ppm": true, "pgm": true,
}

func SupportedOutput(format string) bool {
	return outputFormats[strings.ToLower(format)]
}

type Options struct {
	Quality int // jpg/webp, 0 → 85
	Width   int
	Height  int
}

type Magick struct {
	ConvertPath  string
	IdentifyPath string
	Timeout      time.Duration
}

func NewMagick() *Magick {
	return &Magick{
		ConvertPath:  "convert",
		IdentifyPath: "identify",
		Timeout:      5 * time.Minute,
	}
}

// ConvertArgs собирает аргументы convert: белая подложка для форматов без
// прозрачности, качество для lossy, ресайз с сохранением пропорций, когда
// задана одна из сторон.
func ConvertArgs(input, output, format string, opts Options) []string {
	args := []string{input}

	switch strings.ToLower(format) {
	case "jpg", "jpeg", "bmp":
		args = append(args, "-background", "white", "-flatten")
	}

	switch {
	case opts.Width > 0 && opts.Height > 0:
		args = append(args, "-resize", fmt.Sprintf("%dx%d!", opts.Width, opts.Height))
	case opts.Width > 0:
		args = append(args, "-resize", fmt.Sprintf("%dx", opts.Width))
	case opts.Height > 0:
		args = append(args, "-resize", fmt.Sprintf("x%d", opts.Height))
	}

	switch strings.ToLower(format) {
	case "jpg", "jpeg", "webp":
		quality := opts.Quality
		if quality <= 0 {
			quality = 85
		}
		args = append(args, "-quality", strconv.Itoa(quality))
	}

	return append(args, output)
}

func (m *Magick) Convert(ctx context.Context, input, output, format string, opts Options) error {
	if !SupportedOutput(format) {
		return fmt.Errorf("unsupported image output format %q", format)
	}
	return m.run(ctx, m.ConvertPath, ConvertArgs(input, output, format, opts)...)
}

type ImageInfo struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (m *Magick) Identify(ctx context.Context, path string) (*ImageInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.IdentifyPath, "-format", "%m %w %h", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("identify: %w: %s", err, bytes.TrimSpace(out))
	}

	fields := strings.Fields(string(out))
	if len(fields) < 3 {
		return nil, fmt.Errorf("identify: unexpected output %q", out)
	}
	width, err1 := strconv.Atoi(fields[1])
	height, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("identify: unexpected output %q", out)
	}

	return &ImageInfo{Format: fields[0], Width: width, Height: height}, nil
}

func (m *Magick) run(ctx context.Context, path string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("convert: timeout after %s", m.Timeout)
		}
		const maxOut = 500
		if len(out) > maxOut {
			out = out[len(out)-maxOut:]
		}
		return fmt.Errorf("convert: %w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}
