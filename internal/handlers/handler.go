package handlers

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"net/netip"
	"strings"

	"animerec/internal/models"
	"animerec/internal/quota"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

// Searcher runs the free text → records pipeline.
type Searcher interface {
	Run(ctx context.Context, userInput string) []models.MediaRecord
}

// HomeLister provides the homepage rankings.
type HomeLister interface {
	Load(ctx context.Context) (trending, popular []models.MediaRecord)
}

type Handler struct {
	searcher Searcher
	home     HomeLister
	limiter  quota.Limiter
	logger   *logrus.Logger
	page     *template.Template
	webhook  http.HandlerFunc
	proxies  []netip.Prefix
}

func New(searcher Searcher, home HomeLister, limiter quota.Limiter, logger *logrus.Logger) (*Handler, error) {
	if limiter == nil {
		limiter = quota.Unlimited{}
	}
	if logger == nil {
		logger = logrus.New()
	}

	page, err := template.New("index.html").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}

	return &Handler{
		searcher: searcher,
		home:     home,
		limiter:  limiter,
		logger:   logger,
		page:     page,
	}, nil
}

// Routes builds the chi router for the page, JSON API, health and metrics.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(h.trustedRealIP)
	r.Use(h.accessLog)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.index)
	r.With(h.searchQuota).Post("/", h.search)

	r.Route("/api", func(r chi.Router) {
		r.Get("/home", h.apiHome)
		r.With(h.searchQuota).Post("/recommendations", h.apiRecommendations)
	})

	if h.webhook != nil {
		r.Post(webhookPath, h.webhook)
	}

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
