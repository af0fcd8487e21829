package services

import "github.com/prometheus/client_golang/prometheus"

var (
	searchesTotal     prometheus.Counter
	sourceSearchTotal *prometheus.CounterVec
	publishStepsTotal *prometheus.CounterVec
	reconciledTotal   *prometheus.CounterVec
)

func init() {
	searchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unified_searches_total",
		Help: "Total number of unified searches.",
	})
	sourceSearchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unified_search_source_total",
		Help: "Per-source outcome of unified searches.",
	}, []string{"source", "outcome"})
	publishStepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publish_steps_total",
		Help: "Outcome of each publish step.",
	}, []string{"step", "outcome"})
	reconciledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_steps_total",
		Help: "Outcome of retried publish steps in the reconciliation job.",
	}, []string{"step", "outcome"})
	prometheus.MustRegister(searchesTotal, sourceSearchTotal, publishStepsTotal, reconciledTotal)
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
