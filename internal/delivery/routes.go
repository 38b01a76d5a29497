package delivery

import (
	"net/http"

	"github.com/Vovarama1992/go-utils/httputil"
	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(
	r chi.Router,
	hCore *CoreHandler,
	hHealth *HealthHandler,
	hAudio *AudioHandler,
	hVideo *VideoHandler,
	hImage *ImageHandler,
	hPDF *PDFHandler,
	rateLimit func(http.Handler) http.Handler,
) {
	// --- служебные ---
	r.With(httputil.RecoverMiddleware).
		Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("pong"))
		})
	r.With(httputil.RecoverMiddleware).
		Get("/api/health/", hHealth.Check)

	r.Route("/api", func(pr chi.Router) {
		pr.Use(
			httputil.RecoverMiddleware,
			ClientInfoMiddleware,
			rateLimit,
		)

		// --- задачи и выдача ---
		pr.Get("/core/jobs/", hCore.ListJobs)
		pr.Get("/core/jobs/{job_id}/", hCore.GetJob)
		pr.Get("/core/download/{file_id}/", hCore.Download)

		// --- аудио ---
		pr.Post("/audio/convert/", hAudio.Convert)
		pr.Post("/audio/trim/", hAudio.Trim)
		pr.Post("/audio/extract/", hAudio.Extract)
		pr.Post("/audio/info/", hAudio.Info)

		// --- видео ---
		pr.Post("/video/convert/", hVideo.Convert)
		pr.Post("/video/trim/", hVideo.Trim)
		pr.Post("/video/info/", hVideo.Info)

		// --- изображения ---
		pr.Post("/image/convert/", hImage.Convert)
		pr.Post("/image/info/", hImage.Info)

		// --- PDF ---
		pr.Post("/pdf/merge/", hPDF.Merge)
		pr.Post("/pdf/split/", hPDF.Split)
		pr.Post("/pdf/compress/", hPDF.Compress)
		pr.Post("/pdf/rotate/", hPDF.Rotate)
		pr.Post("/pdf/delete-pages/", hPDF.DeletePages)
		pr.Post("/pdf/reorder/", hPDF.Reorder)
		pr.Post("/pdf/protect/", hPDF.Protect)
		pr.Post("/pdf/unlock/", hPDF.Unlock)
		pr.Post("/pdf/images-to-pdf/", hPDF.ImagesToPDF)
		pr.Post("/pdf/pdf-to-images/", hPDF.PDFToImages)
		pr.Post("/pdf/extract-text/", hPDF.ExtractText)
		pr.Post("/pdf/info/", hPDF.Info)
	})
}
