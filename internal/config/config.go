package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string

	MediaRoot        string
	MaxUploadSize    int64
	RateLimitPerHour int
	ConvertedFileTTL time.Duration

	UseAsyncConversion bool
	WorkerCount        int

	ConvertTimeout time.Duration
	ProbeTimeout   time.Duration

	FFmpegPath      string
	FFprobePath     string
	PdftoppmPath    string
	PdfunitePath    string
	PdfseparatePath string
	PdftotextPath   string
	QpdfPath        string
	GsPath          string
	MagickPath      string
	IdentifyPath    string

	StorageBackend string // local | s3
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string

	CORSAllowedOrigins []string

	TelegramAlertToken  string
	TelegramAlertChatID int64

	HealthDetails bool
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getenv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		MediaRoot:        getenv("MEDIA_ROOT", "./media"),
		MaxUploadSize:    getInt64("MAX_UPLOAD_SIZE", 500*1024*1024),
		RateLimitPerHour: getInt("RATE_LIMIT_PER_HOUR", 100),
		ConvertedFileTTL: getDuration("CONVERTED_FILE_TTL", time.Hour),

		UseAsyncConversion: getBool("USE_ASYNC_CONVERSION", false),
		WorkerCount:        getInt("WORKER_COUNT", runtime.NumCPU()),

		ConvertTimeout: getDuration("CONVERT_TIMEOUT", 5*time.Minute),
		ProbeTimeout:   getDuration("PROBE_TIMEOUT", 30*time.Second),

		FFmpegPath:      getenv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:     getenv("FFPROBE_PATH", "ffprobe"),
		PdftoppmPath:    getenv("PDFTOPPM_PATH", "pdftoppm"),
		PdfunitePath:    getenv("PDFUNITE_PATH", "pdfunite"),
		PdfseparatePath: getenv("PDFSEPARATE_PATH", "pdfseparate"),
		PdftotextPath:   getenv("PDFTOTEXT_PATH", "pdftotext"),
		QpdfPath:        getenv("QPDF_PATH", "qpdf"),
		GsPath:          getenv("GS_PATH", "gs"),
		MagickPath:      getenv("MAGICK_PATH", "convert"),
		IdentifyPath:    getenv("IDENTIFY_PATH", "identify"),

		StorageBackend: getenv("STORAGE_BACKEND", "local"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       os.Getenv("S3_REGION"),

		CORSAllowedOrigins: getCSV("CORS_ALLOWED_ORIGINS", []string{"*"}),

		TelegramAlertToken:  os.Getenv("TELEGRAM_ALERT_TOKEN"),
		TelegramAlertChatID: getInt64("TELEGRAM_ALERT_CHAT_ID", 0),

		HealthDetails: getBool("HEALTH_DETAILS", false),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.StorageBackend != "local" && cfg.StorageBackend != "s3" {
		return nil, fmt.Errorf("STORAGE_BACKEND must be local or s3, got %q", cfg.StorageBackend)
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	return cfg, nil
}

// EnsureMediaRoot создаёт uploads/ и outputs/ под MEDIA_ROOT. Каталог нужен
// и при s3-бэкенде: health-check и временные файлы живут на диске.
func (c *Config) EnsureMediaRoot() error {
	for _, dir := range []string{"uploads", "outputs"} {
		if err := os.MkdirAll(filepath.Join(c.MediaRoot, dir), 0o755); err != nil {
			return fmt.Errorf("create media dir: %w", err)
		}
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getCSV(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
