// Package httpapi is the HTTP transport of the document store: a chi router
// with JSON endpoints under /api/v1, health checks and Prometheus metrics.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/doctree/internal/logging"
	"github.com/dmitrijs2005/doctree/internal/server/notify"
	"github.com/dmitrijs2005/doctree/internal/server/services"
	"github.com/dmitrijs2005/doctree/internal/server/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultUploadMemory = 32 << 20

// Pinger reports whether a dependency is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	files      *services.FileService
	dirs       *services.DirectoryService
	categories *services.CategoryService
	archives   *services.ArchiveBuilder
	sessions   *session.Registry
	notifier   notify.Notifier
	db         Pinger
	secretKey  []byte
	logger     logging.Logger
	now        func() time.Time

	// UploadMemory is the part of a multipart upload kept in memory; the
	// rest is spooled to temporary files.
	UploadMemory int64
}

func NewHandler(files *services.FileService, dirs *services.DirectoryService, categories *services.CategoryService,
	archives *services.ArchiveBuilder, sessions *session.Registry, notifier notify.Notifier, db Pinger,
	secretKey string, logger logging.Logger) *Handler {
	return &Handler{
		files:        files,
		dirs:         dirs,
		categories:   categories,
		archives:     archives,
		sessions:     sessions,
		notifier:     notifier,
		db:           db,
		secretKey:    []byte(secretKey),
		logger:       logger.With("module", "http"),
		now:          time.Now,
		UploadMemory: defaultUploadMemory,
	}
}

// Router builds the route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.logger))
	r.Use(Metrics())

	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(h.secretKey))

		r.Get("/archive", h.Archive)

		r.Route("/files", func(r chi.Router) {
			r.Post("/", h.UploadFile)
			r.Delete("/", h.DeleteFileByName)
			r.Get("/search", h.SearchFiles)
			r.Get("/{storedId}/content", h.FileContent)
			r.Get("/{fileId}/url", h.FileURL)
			r.Patch("/{fileId}", h.RenameFile)
			r.Delete("/{fileId}", h.DeleteFile)
		})

		r.Route("/directories", func(r chi.Router) {
			r.Post("/", h.CreateDirectory)
			r.Get("/{id}", h.GetDirectory)
			r.Get("/{id}/children", h.DirectoryChildren)
			r.Get("/{id}/files", h.DirectoryFiles)
			r.Get("/{id}/tree", h.DirectoryTree)
			r.Patch("/{id}", h.UpdateDirectory)
			r.Delete("/{id}", h.DeleteDirectory)
		})

		r.Get("/categories", h.ListCategories)
		r.Post("/categories", h.CreateCategory)

		r.Post("/sessions", h.OpenSession)
		r.Delete("/sessions", h.CloseSession)
		r.Get("/sessions", h.ListSessions)
	})

	return r
}

func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "fail", "message": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
