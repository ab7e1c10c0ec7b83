// Package metrics exposes Prometheus collectors for claimcheck.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "claimcheck"

var (
	// InferenceCalls counts inference calls by stage and outcome
	InferenceCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inference_calls_total",
		Help:      "Inference calls by stage and outcome",
	}, []string{"stage", "outcome"})

	// Tokens counts tokens by stage and direction (prompt, completion)
	Tokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_total",
		Help:      "Tokens consumed by stage and direction",
	}, []string{"stage", "direction"})

	// InferenceDuration tracks inference latency including retries
	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "inference_duration_seconds",
		Help:      "Inference call duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
	}, []string{"stage"})

	// SearchCalls counts search calls by outcome (ok, error, cached)
	SearchCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_calls_total",
		Help:      "Search calls by outcome",
	}, []string{"outcome"})

	// Verdicts counts finished verification loops by verdict kind
	Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verdicts_total",
		Help:      "Verdicts by kind",
	}, []string{"kind"})

	// LoopIterations tracks retrieval rounds per verification loop
	LoopIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "loop_iterations",
		Help:      "Retrieval rounds per verification loop",
		Buckets:   []float64{1, 2, 3, 4, 5, 8},
	})

	// ActiveLoops reports verification loops currently admitted by the gate
	ActiveLoops = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_loops",
		Help:      "Verification loops currently running",
	})

	// BreakerState reports the shared circuit breaker state (0 closed, 1 open, 2 half-open)
	BreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "breaker_state",
		Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open",
	})

	// BreakerTransitions counts breaker transitions by target state
	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "breaker_transitions_total",
		Help:      "Circuit breaker transitions by target state",
	}, []string{"to"})

	// ConsensusOutcomes counts consensus decisions by stage and result (accepted, rejected)
	ConsensusOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "consensus_outcomes_total",
		Help:      "Consensus decisions by stage and result",
	}, []string{"stage", "result"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts a metrics endpoint on addr in the background. Errors other than
// server shutdown are sent to errc when it is non-nil.
func Serve(addr string, errc chan<- error) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && errc != nil {
			errc <- err
		}
	}()
	return srv
}
