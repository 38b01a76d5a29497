package domain

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/google/uuid"

	"github.com/fileforgehq/fileforge/internal/alerts"
	"github.com/fileforgehq/fileforge/internal/imagetool"
	"github.com/fileforgehq/fileforge/internal/media"
	"github.com/fileforgehq/fileforge/internal/pdftool"
	"github.com/fileforgehq/fileforge/internal/ports"
)

// Runner выполняет задачу: стейджит вход из хранилища во временный каталог,
// зовёт нужный инструмент, кладёт результат в outputs/ и закрывает задачу.
type Runner struct {
	jobs    ports.JobRepo
	files   ports.FileRepo
	usage   ports.UsageRepo
	storage ports.StorageService
	ffmpeg  *media.FFmpeg
	pdf     *pdftool.Toolchain
	magick  *imagetool.Magick
	alerts  alerts.Notifier
	log     *logger.ZapLogger
}

func NewRunner(
	jobs ports.JobRepo,
	files ports.FileRepo,
	usage ports.UsageRepo,
	storage ports.StorageService,
	ffmpeg *media.FFmpeg,
	pdf *pdftool.Toolchain,
	magick *imagetool.Magick,
	alertSvc alerts.Notifier,
	log *logger.ZapLogger,
) *Runner {
	return &Runner{
		jobs:    jobs,
		files:   files,
		usage:   usage,
		storage: storage,
		ffmpeg:  ffmpeg,
		pdf:     pdf,
		magick:  magick,
		alerts:  alertSvc,
		log:     log,
	}
}

func (r *Runner) Execute(ctx context.Context, jobID uuid.UUID) error {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status.Terminal() {
		return nil
	}
	if err := r.jobs.MarkProcessing(ctx, job.ID); err != nil {
		return fmt.Errorf("mark processing %s: %w", job.ID, err)
	}

	start := time.Now()

	tmpDir, err := os.MkdirTemp("", "fileforge-*")
	if err != nil {
		return r.fail(ctx, job, start, fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(tmpDir)

	if err := r.process(ctx, job, tmpDir); err != nil {
		return r.fail(ctx, job, start, err)
	}

	r.logUsage(ctx, job, true, start)
	return nil
}

func (r *Runner) fail(ctx context.Context, job *ports.Job, start time.Time, runErr error) error {
	msg := runErr.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	if err := r.jobs.MarkFailed(ctx, job.ID, msg); err != nil {
		r.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "mark failed for job " + job.ID.String(),
			Service: "runner",
			Error:   err,
		})
	}
	r.logUsage(ctx, job, false, start)
	_ = r.alerts.Notify(ctx, job.ID, runErr, string(job.ToolType)+"/"+string(job.Operation))

	r.log.Log(logger.LogEntry{
		Level:   "error",
		Message: "job " + job.ID.String() + " failed",
		Service: "runner",
		Error:   runErr,
	})
	return runErr
}

func (r *Runner) process(ctx context.Context, job *ports.Job, tmpDir string) error {
	inputPath, err := r.stage(ctx, tmpDir, job.InputKey, "input."+job.InputFormat)
	if err != nil {
		return err
	}

	outPath, outExt, err := r.dispatch(ctx, job, tmpDir, inputPath)
	if err != nil {
		return err
	}

	out, err := os.Open(outPath)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer out.Close()

	info, err := out.Stat()
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}

	cleanName := CleanOutputFilename(OriginalNameFromKey(job.InputKey), outExt)
	outputKey, err := r.storage.SaveOutput(ctx, cleanName, out, info.Size(), contentTypeFor(outExt))
	if err != nil {
		return fmt.Errorf("store output: %w", err)
	}

	converted := &ports.ConvertedFile{
		ID:               uuid.New(),
		JobID:            job.ID,
		OutputKey:        outputKey,
		OutputFormat:     outExt,
		OriginalFilename: cleanName,
		FileSize:         info.Size(),
	}
	if err := r.files.CreateConverted(ctx, converted); err != nil {
		return fmt.Errorf("record converted file: %w", err)
	}

	if err := r.jobs.MarkCompleted(ctx, job.ID, outputKey); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// dispatch выбирает инструмент по (tool, operation) и возвращает путь
// к результату и его расширение.
func (r *Runner) dispatch(ctx context.Context, job *ports.Job, tmpDir, inputPath string) (string, string, error) {
	switch job.ToolType {
	case ports.ToolAudio:
		return r.runAudio(ctx, job, tmpDir, inputPath)
	case ports.ToolVideo:
		return r.runVideo(ctx, job, tmpDir, inputPath)
	case ports.ToolImage:
		return r.runImage(ctx, job, tmpDir, inputPath)
	case ports.ToolPDF:
		return r.runPDF(ctx, job, tmpDir, inputPath)
	default:
		return "", "", fmt.Errorf("unknown tool type %q", job.ToolType)
	}
}

func (r *Runner) runAudio(ctx context.Context, job *ports.Job, tmpDir, inputPath string) (string, string, error) {
	r.recordDuration(ctx, job, inputPath)

	switch job.Operation {
	case ports.OpConvert:
		out := filepath.Join(tmpDir, "output."+job.OutputFormat)
		warning, err := r.ffmpeg.ConvertAudio(ctx, inputPath, out, job.OutputFormat, media.AudioOptions{
			Bitrate:    optString(job.Options, "bitrate"),
			SampleRate: optInt(job.Options, "sample_rate"),
			Channels:   optInt(job.Options, "channels"),
		})
		r.warn(job, warning)
		return out, job.OutputFormat, err

	case ports.OpTrim:
		format := job.OutputFormat
		if format == "" {
			format = job.InputFormat
		}
		out := filepath.Join(tmpDir, "output."+format)
		start, end := optFloat(job.Options, "start_time"), optFloat(job.Options, "end_time")
		if err := r.checkTrimBounds(ctx, inputPath, start, end); err != nil {
			return "", "", err
		}
		err := r.ffmpeg.Trim(ctx, inputPath, out, start, end, optBool(job.Options, "copy_mode", true))
		return out, format, err

	case ports.OpExtract:
		out := filepath.Join(tmpDir, "output."+job.OutputFormat)
		warning, err := r.ffmpeg.ExtractAudio(ctx, inputPath, out, job.OutputFormat, optString(job.Options, "bitrate"))
		r.warn(job, warning)
		return out, job.OutputFormat, err
	}
	return "", "", fmt.Errorf("unsupported audio operation %q", job.Operation)
}

func (r *Runner) runVideo(ctx context.Context, job *ports.Job, tmpDir, inputPath string) (string, string, error) {
	r.recordDuration(ctx, job, inputPath)

	switch job.Operation {
	case ports.OpConvert:
		out := filepath.Join(tmpDir, "output."+job.OutputFormat)
		warning, err := r.ffmpeg.ConvertVideo(ctx, inputPath, out, job.OutputFormat, media.VideoOptions{
			Resolution:   optString(job.Options, "resolution"),
			VideoBitrate: optString(job.Options, "video_bitrate"),
			AudioBitrate: optString(job.Options, "audio_bitrate"),
		})
		r.warn(job, warning)
		return out, job.OutputFormat, err

	case ports.OpTrim:
		format := job.OutputFormat
		if format == "" {
			format = job.InputFormat
		}
		out := filepath.Join(tmpDir, "output."+format)
		start, end := optFloat(job.Options, "start_time"), optFloat(job.Options, "end_time")
		if err := r.checkTrimBounds(ctx, inputPath, start, end); err != nil {
			return "", "", err
		}
		err := r.ffmpeg.Trim(ctx, inputPath, out, start, end, optBool(job.Options, "copy_mode", true))
		return out, format, err
	}
	return "", "", fmt.Errorf("unsupported video operation %q", job.Operation)
}

func (r *Runner) runImage(ctx context.Context, job *ports.Job, tmpDir, inputPath string) (string, string, error) {
	if job.Operation != ports.OpConvert {
		return "", "", fmt.Errorf("unsupported image operation %q", job.Operation)
	}
	out := filepath.Join(tmpDir, "output."+job.OutputFormat)
	err := r.magick.Convert(ctx, inputPath, out, job.OutputFormat, imagetool.Options{
		Quality: optInt(job.Options, "quality"),
		Width:   optInt(job.Options, "width"),
		Height:  optInt(job.Options, "height"),
	})
	return out, job.OutputFormat, err
}

func (r *Runner) runPDF(ctx context.Context, job *ports.Job, tmpDir, inputPath string) (string, string, error) {
	switch job.Operation {
	case ports.OpMerge:
		inputs, err := r.stageExtraInputs(ctx, job, tmpDir, inputPath)
		if err != nil {
			return "", "", err
		}
		out := filepath.Join(tmpDir, "output.pdf")
		return out, "pdf", r.pdf.Merge(ctx, inputs, out)

	case ports.OpSplit:
		pagesDir := filepath.Join(tmpDir, "pages")
		if err := os.Mkdir(pagesDir, 0o755); err != nil {
			return "", "", err
		}
		var (
			parts []string
			err   error
		)
		if spec := optString(job.Options, "page_ranges"); spec != "" {
			ranges, perr := pdftool.ParsePageRanges(spec)
			if perr != nil {
				return "", "", perr
			}
			parts, err = r.pdf.SplitRanges(ctx, inputPath, pagesDir, ranges)
		} else {
			parts, err = r.pdf.SplitAll(ctx, inputPath, pagesDir)
		}
		if err != nil {
			return "", "", err
		}
		return bundle(tmpDir, parts)

	case ports.OpCompress:
		quality := optString(job.Options, "quality")
		if quality == "" {
			quality = "medium"
		}
		out := filepath.Join(tmpDir, "output.pdf")
		return out, "pdf", r.pdf.Compress(ctx, inputPath, out, quality)

	case ports.OpRotate:
		var pages []int
		if spec := optString(job.Options, "pages"); spec != "" {
			var err error
			if pages, err = pdftool.ParsePageList(spec); err != nil {
				return "", "", err
			}
		}
		out := filepath.Join(tmpDir, "output.pdf")
		return out, "pdf", r.pdf.Rotate(ctx, inputPath, out, optInt(job.Options, "rotation"), pages)

	case ports.OpDeletePages:
		pages, err := pdftool.ParsePageList(optString(job.Options, "pages"))
		if err != nil {
			return "", "", err
		}
		total, err := pdftool.PageCount(inputPath)
		if err != nil {
			return "", "", err
		}
		out := filepath.Join(tmpDir, "output.pdf")
		return out, "pdf", r.pdf.DeletePages(ctx, inputPath, out, pages, total)

	case ports.OpReorder:
		order, err := pdftool.ParsePageList(optString(job.Options, "order"))
		if err != nil {
			return "", "", err
		}
		out := filepath.Join(tmpDir, "output.pdf")
		return out, "pdf", r.pdf.Reorder(ctx, inputPath, out, order)

	case ports.OpProtect:
		out := filepath.Join(tmpDir, "output.pdf")
		return out, "pdf", r.pdf.Protect(ctx, inputPath, out,
			optString(job.Options, "password"), optString(job.Options, "owner_password"))

	case ports.OpUnlock:
		out := filepath.Join(tmpDir, "output.pdf")
		return out, "pdf", r.pdf.Unlock(ctx, inputPath, out, optString(job.Options, "password"))

	case ports.OpExtract:
		out := filepath.Join(tmpDir, "output.txt")
		return out, "txt", r.pdf.ExtractText(ctx, inputPath, out)

	case ports.OpConvert:
		// pdf → изображения либо изображения → pdf
		if job.OutputFormat == "pdf" {
			inputs, err := r.stageExtraInputs(ctx, job, tmpDir, inputPath)
			if err != nil {
				return "", "", err
			}
			out := filepath.Join(tmpDir, "output.pdf")
			return out, "pdf", r.pdf.FromImages(ctx, inputs, out, optString(job.Options, "page_size"))
		}
		pagesDir := filepath.Join(tmpDir, "pages")
		if err := os.Mkdir(pagesDir, 0o755); err != nil {
			return "", "", err
		}
		images, err := r.pdf.ToImages(ctx, inputPath, pagesDir, job.OutputFormat, optInt(job.Options, "dpi"))
		if err != nil {
			return "", "", err
		}
		return bundle(tmpDir, images)
	}
	return "", "", fmt.Errorf("unsupported pdf operation %q", job.Operation)
}

// stage выкачивает блоб во временный файл.
func (r *Runner) stage(ctx context.Context, tmpDir, key, name string) (string, error) {
	src, _, err := r.storage.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("open input %s: %w", key, err)
	}
	defer src.Close()

	path := filepath.Join(tmpDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("stage input %s: %w", key, err)
	}
	return path, dst.Close()
}

// stageExtraInputs стейджит дополнительные входы multi-file операций
// (merge, images-to-pdf). InputKey задачи — первый из них.
func (r *Runner) stageExtraInputs(ctx context.Context, job *ports.Job, tmpDir, inputPath string) ([]string, error) {
	keys := optStrings(job.Options, "input_keys")
	if len(keys) == 0 {
		return []string{inputPath}, nil
	}
	inputs := make([]string, 0, len(keys))
	for i, key := range keys {
		if key == job.InputKey {
			inputs = append(inputs, inputPath)
			continue
		}
		ext := filepath.Ext(key)
		path, err := r.stage(ctx, tmpDir, key, fmt.Sprintf("input_%d%s", i+1, ext))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, path)
	}
	return inputs, nil
}

func (r *Runner) checkTrimBounds(ctx context.Context, inputPath string, start, end float64) error {
	if end <= start {
		return fmt.Errorf("end_time must be greater than start_time")
	}
	if dur := r.ffmpeg.Duration(ctx, inputPath); dur != nil && end > *dur {
		return fmt.Errorf("end_time %.2f exceeds media duration %.2f", end, *dur)
	}
	return nil
}

func (r *Runner) recordDuration(ctx context.Context, job *ports.Job, inputPath string) {
	if dur := r.ffmpeg.Duration(ctx, inputPath); dur != nil {
		job.Duration = dur
		if err := r.jobs.SetDuration(ctx, job.ID, *dur); err != nil {
			r.log.Log(logger.LogEntry{
				Level:   "warn",
				Message: "set duration for job " + job.ID.String(),
				Service: "runner",
				Error:   err,
			})
		}
	}
}

func (r *Runner) warn(job *ports.Job, warning string) {
	if warning == "" {
		return
	}
	r.log.Log(logger.LogEntry{
		Level:   "warn",
		Message: "job " + job.ID.String() + ": " + warning,
		Service: "runner",
	})
}

func (r *Runner) logUsage(ctx context.Context, job *ports.Job, success bool, start time.Time) {
	ms := time.Since(start).Milliseconds()
	entry := &ports.UsageEntry{
		ToolName:         string(job.ToolType) + "_" + string(job.Operation),
		ClientIP:         job.ClientIP,
		UserAgent:        job.UserAgent,
		Success:          success,
		JobID:            &job.ID,
		ProcessingTimeMS: &ms,
	}
	if err := r.usage.Insert(ctx, entry); err != nil {
		r.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "usage log insert",
			Service: "runner",
			Error:   err,
		})
	}
}

// bundle пакует многофайловый результат в один zip-артефакт.
func bundle(tmpDir string, parts []string) (string, string, error) {
	out := filepath.Join(tmpDir, "output.zip")
	f, err := os.Create(out)
	if err != nil {
		return "", "", err
	}
	if err := pdftool.BundleZip(parts, f); err != nil {
		f.Close()
		return "", "", fmt.Errorf("bundle zip: %w", err)
	}
	return out, "zip", f.Close()
}

func contentTypeFor(ext string) string {
	if t := mime.TypeByExtension("." + ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func optString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func optStrings(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// числа из JSONB приходят как float64
func optInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func optFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func optBool(m map[string]any, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}
