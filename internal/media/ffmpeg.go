package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// ToolError — ошибка внешнего инструмента с хвостом stderr.
type ToolError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

const stderrTail = 500

func tail(b []byte) string {
	if len(b) > stderrTail {
		b = b[len(b)-stderrTail:]
	}
	return string(bytes.TrimSpace(b))
}

type FFmpeg struct {
	Path           string
	ProbePath      string
	ConvertTimeout time.Duration
	ProbeTimeout   time.Duration
}

func NewFFmpeg(path, probePath string, convertTimeout, probeTimeout time.Duration) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if probePath == "" {
		probePath = "ffprobe"
	}
	if convertTimeout == 0 {
		convertTimeout = 5 * time.Minute
	}
	if probeTimeout == 0 {
		probeTimeout = 30 * time.Second
	}
	return &FFmpeg{
		Path:           path,
		ProbePath:      probePath,
		ConvertTimeout: convertTimeout,
		ProbeTimeout:   probeTimeout,
	}
}

// Run запускает ffmpeg -y -threads 0 -i input <args> output.
func (f *FFmpeg) Run(ctx context.Context, input, output string, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, f.ConvertTimeout)
	defer cancel()

	cmdArgs := append([]string{"-y", "-threads", "0", "-i", input}, args...)
	cmdArgs = append(cmdArgs, output)

	cmd := exec.CommandContext(ctx, f.Path, cmdArgs...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &ToolError{Tool: "ffmpeg", Err: fmt.Errorf("timeout after %s", f.ConvertTimeout)}
		}
		return &ToolError{Tool: "ffmpeg", Stderr: tail(stderr.Bytes()), Err: err}
	}
	return nil
}

type ProbeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ProbeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	SampleRate string `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ProbePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &ToolError{Tool: "ffprobe", Err: fmt.Errorf("timeout after %s", f.ProbeTimeout)}
		}
		return nil, &ToolError{Tool: "ffprobe", Stderr: tail(stderr.Bytes()), Err: err}
	}

	var result ProbeResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, &ToolError{Tool: "ffprobe", Err: fmt.Errorf("invalid output: %w", err)}
	}
	return &result, nil
}

// Duration — длительность в секундах, nil когда неизвестна.
func (f *FFmpeg) Duration(ctx context.Context, path string) *float64 {
	info, err := f.Probe(ctx, path)
	if err != nil {
		return nil
	}
	secs, err := strconv.ParseFloat(info.Format.Duration, 64)
	if err != nil {
		return nil
	}
	return &secs
}
