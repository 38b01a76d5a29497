package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vovarama1992/go-utils/logger"

	"github.com/fileforgehq/fileforge/internal/alerts"
	"github.com/fileforgehq/fileforge/internal/config"
	"github.com/fileforgehq/fileforge/internal/delivery"
	"github.com/fileforgehq/fileforge/internal/domain"
	"github.com/fileforgehq/fileforge/internal/imagetool"
	"github.com/fileforgehq/fileforge/internal/infra"
	"github.com/fileforgehq/fileforge/internal/media"
	"github.com/fileforgehq/fileforge/internal/pdftool"
	"github.com/fileforgehq/fileforge/internal/ports"
	"github.com/fileforgehq/fileforge/internal/workers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const cleanupInterval = 30 * time.Minute

func main() {

	// =========================================================================
	// ENV / DB INIT
	// =========================================================================

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.EnsureMediaRoot(); err != nil {
		log.Fatalf("media root: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("db ping failed: %v", err)
	}
	defer db.Close()

	baseLogger, _ := zap.NewProduction()
	defer baseLogger.Sync()
	zl := logger.NewZapLogger(baseLogger.Sugar())

	// =========================================================================
	// INFRASTRUCTURE
	// =========================================================================

	var store ports.BlobStore
	switch cfg.StorageBackend {
	case "s3":
		store, err = infra.NewS3Store(cfg)
	default:
		store, err = infra.NewLocalStore(cfg.MediaRoot)
	}
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}

	ffmpeg := media.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath, cfg.ConvertTimeout, cfg.ProbeTimeout)

	pdfTools := pdftool.NewToolchain()
	pdfTools.PdftoppmPath = cfg.PdftoppmPath
	pdfTools.PdfunitePath = cfg.PdfunitePath
	pdfTools.PdfseparatePath = cfg.PdfseparatePath
	pdfTools.PdftotextPath = cfg.PdftotextPath
	pdfTools.QpdfPath = cfg.QpdfPath
	pdfTools.GsPath = cfg.GsPath
	pdfTools.MagickPath = cfg.MagickPath
	pdfTools.Timeout = cfg.ConvertTimeout

	magick := imagetool.NewMagick()
	magick.ConvertPath = cfg.MagickPath
	magick.IdentifyPath = cfg.IdentifyPath
	magick.Timeout = cfg.ConvertTimeout

	// =========================================================================
	// REPOSITORIES
	// =========================================================================

	jobRepo := infra.NewJobRepo(db)
	fileRepo := infra.NewFileRepo(db, cfg.ConvertedFileTTL)
	usageRepo := infra.NewUsageRepo(db)

	// =========================================================================
	// ERROR NOTIFICATION
	// =========================================================================

	alertInfra, err := alerts.NewTelegramInfra(cfg.TelegramAlertToken, cfg.TelegramAlertChatID)
	if err != nil {
		log.Fatalf("failed to init telegram alerts: %v", err)
	}
	alertService := alerts.NewService(alertInfra)

	// =========================================================================
	// DOMAIN SERVICES
	// =========================================================================

	storageService := domain.NewStorageService(store)
	jobService := domain.NewJobService(jobRepo)
	runner := domain.NewRunner(jobRepo, fileRepo, usageRepo, storageService, ffmpeg, pdfTools, magick, alertService, zl)
	cleanupService := domain.NewCleanupService(fileRepo, jobRepo, storageService, zl)

	// =========================================================================
	// WORKER POOL
	// =========================================================================

	pool := workers.NewPool(cfg.WorkerCount, runner)
	if cfg.UseAsyncConversion {
		pool.Start(context.Background())
	}

	// =========================================================================
	// HTTP ROUTER
	// =========================================================================

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	// HANDLERS
	deps := &delivery.ConvertDeps{
		Jobs:          jobService,
		Files:         fileRepo,
		Storage:       storageService,
		Runner:        runner,
		Pool:          pool,
		Async:         cfg.UseAsyncConversion,
		MaxUploadSize: cfg.MaxUploadSize,
		Log:           zl,
	}
	coreHandler := delivery.NewCoreHandler(jobService, fileRepo, storageService, zl)
	healthHandler := delivery.NewHealthHandler(db, cfg.FFmpegPath, cfg.MediaRoot, cfg.HealthDetails)
	audioHandler := delivery.NewAudioHandler(deps, ffmpeg)
	videoHandler := delivery.NewVideoHandler(deps, ffmpeg)
	imageHandler := delivery.NewImageHandler(deps, magick)
	pdfHandler := delivery.NewPDFHandler(deps)

	// ROUTES
	delivery.RegisterRoutes(
		r,
		coreHandler,
		healthHandler,
		audioHandler,
		videoHandler,
		imageHandler,
		pdfHandler,
		delivery.RateLimitMiddleware(cfg.RateLimitPerHour),
	)

	// =========================================================================
	// BACKGROUND JOBS
	// =========================================================================

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			ctx := context.Background()
			removed, err := cleanupService.Sweep(ctx)
			if err != nil {
				log.Printf("[cleanup-expired] error: %v", err)
			} else if removed > 0 {
				log.Printf("[cleanup-expired] removed %d expired files", removed)
			}
		}
	}()

	// =========================================================================
	// START SERVER
	// =========================================================================

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	zl.Log(logger.LogEntry{
		Level:   "info",
		Message: "listening at " + addr,
		Service: "fileforge",
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop, stopCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopCancel()
	<-stop.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// доработать хвост очереди перед выходом
	if cfg.UseAsyncConversion {
		pool.Wait()
	}
}
