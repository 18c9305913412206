// Package api serves browser sessions, their geometry and budget allocations
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/browser"
	"github.com/sells-group/geobrowser/internal/electoral"
	"github.com/sells-group/geobrowser/internal/metrics"
)

// DatasetSource returns the persisted electoral dataset, if any.
type DatasetSource interface {
	LoadDataset(ctx context.Context) (*electoral.Dataset, error)
}

// ReloadFunc reloads both datasets.
type ReloadFunc func(ctx context.Context) (browser.Datasets, error)

// Options configures the Server.
type Options struct {
	AllowedOrigins []string
	DefaultBudget  int64
	Store          DatasetSource // optional
	Reload         ReloadFunc    // optional; enables POST /datasets/reload
}

// Server holds the handlers' dependencies.
type Server struct {
	sessions *browser.Registry
	opts     Options
	log      *zap.Logger
}

// NewServer creates a Server over a session registry.
func NewServer(sessions *browser.Registry, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		sessions: sessions,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "api")),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Refresh-Token"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/get_electoral_data", s.handleElectoralData)
	if s.opts.Reload != nil {
		r.Post("/datasets/reload", s.handleReload)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/events", s.handleEvent)
			r.Get("/geometry", s.handleGeometry)
			r.Post("/allocation", s.handleAllocate)
			r.Get("/allocation", s.handleGetAllocation)
			r.Patch("/allocation", s.handleUpdateAllocation)
			r.Get("/allocation.csv", s.handleAllocationCSV)
			r.Get("/allocation.xlsx", s.handleAllocationXLSX)
		})
	})

	return r
}

// instrument records request latency by route pattern and status.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestDurationMs.
			WithLabelValues(route, strconv.Itoa(status)).
			Observe(float64(time.Since(start).Microseconds()) / 1000)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

type errorBody struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
