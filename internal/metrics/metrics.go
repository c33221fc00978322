package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Failure stages of a run
const (
	StageConnect = "connect"
	StageFetch   = "fetch"
	StagePredict = "predict"
	StageWrite   = "write"
)

var (
	RunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "food_risk_runs_total",
		Help: "Total number of prediction runs started.",
	})
	RunsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "food_risk_runs_failed_total",
		Help: "Total number of prediction runs that failed, by stage.",
	}, []string{"stage"})
	PredictionsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "food_risk_predictions_stored_total",
		Help: "Total number of predictions inserted, by label.",
	}, []string{"predicted_risk"})
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "food_risk_events_published_total",
		Help: "Total number of prediction events published, by publisher.",
	}, []string{"publisher"})
	EventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "food_risk_events_failed_total",
		Help: "Total number of prediction events that failed to publish, by publisher.",
	}, []string{"publisher"})
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "food_risk_run_duration_seconds",
		Help:    "Duration of a full fetch, predict and write run.",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	})
	LastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "food_risk_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run.",
	})
)

// NewServer builds the /metrics and /health server
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve runs the server until it is shut down
func Serve(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("metrics server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server failed")
	}
}
