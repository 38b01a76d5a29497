package media

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type AudioOptions struct {
	Bitrate    string
	SampleRate int
	Channels   int
}

// AudioArgs собирает аргументы ffmpeg для аудио-конвертации.
// Возвращает предупреждение, если битрейт пришлось скорректировать.
func AudioArgs(format string, opts AudioOptions) ([]string, string) {
	cfg, _ := AudioCodecFor(format)

	args := append([]string{}, cfg.Options...)
	args = append(args, "-vn")

	if cfg.Codec != "" {
		args = append(args, "-acodec", cfg.Codec)
	}

	var warning string
	switch {
	case opts.Bitrate != "":
		bitrate, w := ClampAudioBitrate(format, opts.Bitrate)
		warning = w
		if bitrate != "" {
			args = append(args, "-b:a", bitrate)
		}
	case cfg.DefaultBitrate > 0:
		args = append(args, "-b:a", fmt.Sprintf("%dk", cfg.DefaultBitrate))
	}

	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	if opts.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(opts.Channels))
	}

	return args, warning
}

// VideoArgs собирает аргументы ffmpeg для видео-конвертации.
// Опции должны быть предварительно прогнаны через NormalizeVideoOptions.
func VideoArgs(format string, opts VideoOptions) []string {
	cfg, _ := VideoCodecFor(format)

	args := append([]string{}, cfg.Options...)
	args = append(args, "-vcodec", cfg.VCodec, "-acodec", cfg.ACodec)

	if opts.Resolution != "" && !contains(args, "-s") {
		args = append(args, "-s", opts.Resolution)
	}
	if opts.VideoBitrate != "" {
		args = append(args, "-b:v", opts.VideoBitrate)
	}
	if opts.AudioBitrate != "" {
		args = append(args, "-b:a", opts.AudioBitrate)
	}

	// строгим форматам нужен yuv420p для совместимости
	switch strings.ToLower(format) {
	case "3gp", "flv", "wmv":
		args = append(args, "-pix_fmt", "yuv420p")
	}

	return args
}

// TrimArgs — вырезка [start, end) в секундах.
func TrimArgs(start, end float64, copyMode bool) []string {
	args := []string{
		"-ss", formatSeconds(start),
		"-t", formatSeconds(end - start),
	}
	if copyMode {
		args = append(args, "-c", "copy")
	}
	return args
}

// ExtractArgs — выделение аудиодорожки из видео.
func ExtractArgs(format string, bitrate string) ([]string, string) {
	return AudioArgs(format, AudioOptions{Bitrate: bitrate})
}

func (f *FFmpeg) ConvertAudio(ctx context.Context, input, output, format string, opts AudioOptions) (string, error) {
	args, warning := AudioArgs(format, opts)
	return warning, f.Run(ctx, input, output, args)
}

func (f *FFmpeg) ConvertVideo(ctx context.Context, input, output, format string, opts VideoOptions) (string, error) {
	normalized, warning := NormalizeVideoOptions(format, opts)
	return warning, f.Run(ctx, input, output, VideoArgs(format, normalized))
}

func (f *FFmpeg) Trim(ctx context.Context, input, output string, start, end float64, copyMode bool) error {
	return f.Run(ctx, input, output, TrimArgs(start, end, copyMode))
}

func (f *FFmpeg) ExtractAudio(ctx context.Context, input, output, format string, bitrate string) (string, error) {
	args, warning := ExtractArgs(format, bitrate)
	return warning, f.Run(ctx, input, output, args)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func contains(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
