package media

import (
	"fmt"
	"strconv"
	"strings"
)

// AudioCodec описывает кодек формата и его пределы битрейта.
// MaxBitrate == 0 означает lossless формат без битрейта.
type AudioCodec struct {
	Codec          string
	Options        []string
	MaxBitrate     int // kbps
	DefaultBitrate int
}

var audioCodecs = map[string]AudioCodec{
	"mp3":  {Codec: "libmp3lame", Options: []string{"-q:a", "2"}, MaxBitrate: 320, DefaultBitrate: 192},
	"wav":  {Codec: "pcm_s16le"},
	"aac":  {Codec: "aac", MaxBitrate: 320, DefaultBitrate: 192},
	"m4a":  {Codec: "aac", MaxBitrate: 320, DefaultBitrate: 192},
	"flac": {Codec: "flac", Options: []string{"-compression_level", "5"}},
	"ogg":  {Codec: "libvorbis", Options: []string{"-q:a", "6"}, MaxBitrate: 256, DefaultBitrate: 192},
	// opus при 128-256 kbps перцептуально эквивалентен mp3 320
	"opus": {Codec: "libopus", Options: []string{"-vbr", "on", "-compression_level", "5"}, MaxBitrate: 256, DefaultBitrate: 128},
	"aiff": {Codec: "pcm_s16be"},
	"wma":  {Codec: "wmav2", MaxBitrate: 320, DefaultBitrate: 192},
	"amr":  {Codec: "libopencore_amrnb", Options: []string{"-ar", "8000", "-ac", "1"}, MaxBitrate: 12, DefaultBitrate: 12},
	"ac3":  {Codec: "ac3", MaxBitrate: 640, DefaultBitrate: 384},
	"ape":  {Codec: "ape"},
	"caf":  {Codec: "pcm_s16le"},
}

func AudioCodecFor(format string) (AudioCodec, bool) {
	c, ok := audioCodecs[strings.ToLower(format)]
	return c, ok
}

// ClampAudioBitrate валидирует запрошенный битрейт против предела кодека.
// Возвращает безопасное значение вида "192k" и предупреждение, если запрос
// был скорректирован. Для lossless форматов запрос проходит как есть.
func ClampAudioBitrate(format, requested string) (string, string) {
	cfg, ok := audioCodecs[strings.ToLower(format)]
	if !ok || cfg.MaxBitrate == 0 {
		return requested, ""
	}

	s := strings.ToLower(strings.TrimSpace(requested))
	s = strings.TrimSuffix(s, "kbps")
	s = strings.TrimSuffix(s, "k")
	value, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Sprintf("%dk", cfg.DefaultBitrate),
			fmt.Sprintf("Invalid bitrate format, using %dkbps", cfg.DefaultBitrate)
	}

	if value > cfg.MaxBitrate {
		warning := fmt.Sprintf(
			"%s does not support %dkbps. Maximum supported is %dkbps. Using %dkbps instead.",
			strings.ToUpper(format), value, cfg.MaxBitrate, cfg.MaxBitrate,
		)
		return fmt.Sprintf("%dk", cfg.MaxBitrate), warning
	}

	return requested, ""
}

// VideoCodec описывает пару кодеков формата и его ограничения.
type VideoCodec struct {
	VCodec          string
	ACodec          string
	Options         []string
	MaxResolution   string
	Legacy          bool
	ForceResolution bool
}

var videoCodecs = map[string]VideoCodec{
	// preset veryfast в 3-4 раза быстрее medium при ~10% большем файле
	"mp4":  {VCodec: "libx264", ACodec: "aac", Options: []string{"-preset", "veryfast", "-crf", "23", "-movflags", "+faststart"}},
	"mkv":  {VCodec: "libx264", ACodec: "aac", Options: []string{"-preset", "veryfast", "-crf", "23"}},
	"avi":  {VCodec: "libxvid", ACodec: "mp3", Options: []string{"-q:v", "4"}},
	"mov":  {VCodec: "libx264", ACodec: "aac", Options: []string{"-preset", "veryfast", "-movflags", "+faststart"}},
	"webm": {VCodec: "libvpx-vp9", ACodec: "libopus", Options: []string{"-crf", "30", "-b:v", "0", "-deadline", "good", "-cpu-used", "4"}},
	"flv":  {VCodec: "flv1", ACodec: "mp3"},
	"wmv":  {VCodec: "wmv2", ACodec: "wmav2"},
	// 3gp — легаси мобильный формат со строгими требованиями
	"3gp": {
		VCodec: "mpeg4",
		ACodec: "aac",
		Options: []string{
			"-b:v", "384k",
			"-b:a", "64k",
			"-ar", "22050",
			"-ac", "1",
			"-r", "15",
		},
		MaxResolution:   "320x240",
		Legacy:          true,
		ForceResolution: true,
	},
	"mpg":  {VCodec: "mpeg2video", ACodec: "mp2"},
	"mpeg": {VCodec: "mpeg2video", ACodec: "mp2"},
	"ts":   {VCodec: "mpeg2video", ACodec: "mp2"},
	"m4v":  {VCodec: "libx264", ACodec: "aac", Options: []string{"-preset", "veryfast", "-movflags", "+faststart"}},
	"ogv":  {VCodec: "libtheora", ACodec: "libvorbis", Options: []string{"-q:v", "6"}},
}

func VideoCodecFor(format string) (VideoCodec, bool) {
	c, ok := videoCodecs[strings.ToLower(format)]
	return c, ok
}

type VideoOptions struct {
	Resolution   string // "WxH"
	VideoBitrate string
	AudioBitrate string
}

// NormalizeVideoOptions подгоняет опции под ограничения формата: легаси
// форматы теряют пользовательские битрейты и получают предельное разрешение.
func NormalizeVideoOptions(format string, opts VideoOptions) (VideoOptions, string) {
	cfg, ok := videoCodecs[strings.ToLower(format)]
	if !ok {
		return opts, ""
	}

	var warning string

	if cfg.MaxResolution != "" && cfg.ForceResolution {
		if opts.Resolution != "" {
			maxW, maxH, okMax := parseResolution(cfg.MaxResolution)
			w, h, okUser := parseResolution(opts.Resolution)
			if !okUser || (okMax && (w > maxW || h > maxH)) {
				opts.Resolution = cfg.MaxResolution
				warning = fmt.Sprintf("%s format limits resolution to %s. Using maximum supported resolution.",
					strings.ToUpper(format), cfg.MaxResolution)
			}
		} else {
			opts.Resolution = cfg.MaxResolution
		}
	}

	if cfg.Legacy {
		opts.VideoBitrate = ""
		opts.AudioBitrate = ""
		if warning != "" {
			warning += " Bitrate settings are ignored for legacy formats."
		} else {
			warning = fmt.Sprintf("%s is a legacy format. Using optimized settings for compatibility.",
				strings.ToUpper(format))
		}
	}

	return opts, warning
}

func parseResolution(s string) (w, h int, ok bool) {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return w, h, true
}
