package router

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"image-server/internal/http-server/handler/image"
	"image-server/internal/http-server/handler/image/dto"
	"image-server/internal/http-server/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	ImageHandler *image.ImageHandler
	// Ready reports whether the metadata store is reachable. Optional.
	Ready        func(ctx context.Context) error
	StaticDir    string
	TemplatesDir string
}

func SetupRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.MetricsMiddleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/static/") {
				middleware.LoggingMiddleware(next).ServeHTTP(w, r)
			} else {
				next.ServeHTTP(w, r)
			}
		})
	})

	if h.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(h.StaticDir))))
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/images", func(r chi.Router) {
			r.Get("/", h.ImageHandler.ListImages)
			r.Post("/", h.ImageHandler.UploadImage)
			r.Delete("/", h.ImageHandler.DeleteAllImages)

			r.Get("/{id}", h.ImageHandler.GetImage)
			r.Put("/{id}", h.ImageHandler.UpdateImage)
			r.Delete("/{id}", h.ImageHandler.DeleteImage)
			r.Get("/{id}/thumbnail", h.ImageHandler.GetThumbnail)
			r.Get("/{id}/details", h.ImageHandler.GetImageDetails)
		})

		r.Get("/health", h.health)
	})

	if h.TemplatesDir != "" {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			serveHTML(w, r, h.TemplatesDir)
		})
	}

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := h.Ready(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(dto.HealthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}

	json.NewEncoder(w).Encode(dto.HealthResponse{Status: "ok"})
}

func serveHTML(w http.ResponseWriter, r *http.Request, templatesDir string) {
	indexPath := filepath.Join(templatesDir, "index.html")

	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		http.Error(w, "HTML template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, indexPath)
}
