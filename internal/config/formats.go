package config

// Поддерживаемые форматы по инструментам.

var AudioFormats = set(
	"mp3", "wav", "aac", "m4a", "flac", "ogg", "opus",
	"aiff", "alac", "wma", "amr", "ac3", "pcm", "ape", "caf",
)

var VideoFormats = set(
	"mp4", "mkv", "avi", "mov", "webm", "flv", "wmv",
	"3gp", "mpg", "mpeg", "ts", "m4v", "ogv",
	"f4v", "vob", "rm", "rmvb",
)

var ImageFormats = set(
	"jpg", "jpeg", "png", "webp", "gif", "svg", "bmp", "tiff", "tif",
	"ico", "heic", "heif", "raw", "psd", "ai", "eps", "avif",
	"ppm", "pgm",
)

var DocumentFormats = set(
	"doc", "docx", "xls", "xlsx", "ppt", "pptx",
	"txt", "html", "md", "csv", "pdf",
)

func set(formats ...string) map[string]bool {
	m := make(map[string]bool, len(formats))
	for _, f := range formats {
		m[f] = true
	}
	return m
}
