package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dicom-index/internal/database"
	"dicom-index/internal/indexer"
	"dicom-index/internal/middleware"
)

// ProgressSource is the part of the indexer the handlers read.
type ProgressSource interface {
	Progress() indexer.Progress
	IsRunning() bool
}

// Store is the part of the catalog the handlers read.
type Store interface {
	ListRuns(ctx context.Context, limit int) ([]database.Run, error)
	GetRun(ctx context.Context, id string) (database.Run, error)
	CountRows(ctx context.Context) (map[string]int64, error)
}

type Handlers struct {
	indexer   ProgressSource
	store     Store
	log       zerolog.Logger
	startTime time.Time
}

func New(idx ProgressSource, store Store, log zerolog.Logger) *Handlers {
	return &Handlers{
		indexer:   idx,
		store:     store,
		log:       log,
		startTime: time.Now(),
	}
}

// Router registers every route with logging and metrics middleware.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	r.Use(middleware.Logger(h.log, middleware.DefaultLoggingConfig()))

	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	r.HandleFunc("/progress", h.GetProgress).Methods(http.MethodGet)
	r.HandleFunc("/runs", h.ListRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", h.GetRun).Methods(http.MethodGet)
	r.HandleFunc("/catalog", h.GetCatalog).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}
