package metrics

import (
	"encoding/json"
	"net/http"
	"strconv"

	"dirmon/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultLogLimit = 100

// NewRouter serves /metrics from gatherer and a trivial /healthz. When logger
// is set it also serves its recent entries as JSON on /logs?limit=N and a
// live websocket feed on /logs/stream.
func NewRouter(gatherer prometheus.Gatherer, logger *logging.Logger) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if logger != nil {
		logs := logger.Buffer()
		router.Method(http.MethodGet, "/logs/stream", logStream{logger: logger})
		router.Get("/logs", func(w http.ResponseWriter, r *http.Request) {
			limit := defaultLogLimit
			if raw := r.URL.Query().Get("limit"); raw != "" {
				parsed, err := strconv.Atoi(raw)
				if err != nil || parsed <= 0 {
					http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
					return
				}
				limit = parsed
			}
			entries := logs.Last(limit)
			if entries == nil {
				entries = []logging.LogEntry{}
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(entries)
		})
	}
	return router
}
