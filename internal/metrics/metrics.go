// Package metrics registers the Prometheus collectors shared by remem components.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EditOperations counts bank operations by type and result.
	EditOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remem_edit_operations_total",
		Help: "Bank edit operations by operation type and result",
	}, []string{"type", "result"})

	// ForcedActs counts loop transitions overridden to ACT.
	ForcedActs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remem_loop_forced_total",
		Help: "Loop transitions forced to ACT by reason",
	}, []string{"reason"})

	// StoreLoads counts snapshot loads by outcome state.
	StoreLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remem_store_loads_total",
		Help: "Snapshot loads by resulting state",
	}, []string{"state"})

	// RetrievalFallbacks counts retrievals answered by the lexical ranker
	// after the configured ranker failed.
	RetrievalFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remem_retrieval_fallback_total",
		Help: "Retrievals that fell back to lexical ranking, by cause",
	}, []string{"cause"})

	// CapabilityCalls observes text-capability latency by purpose.
	CapabilityCalls = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remem_capability_call_duration_seconds",
		Help:    "Text capability call duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"purpose", "result"})
)

// Gather returns the current value of every remem counter, keyed by
// "<name>{<label values>}". Used by the CLI stats output.
func Gather() (map[string]float64, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, err
	}
	out := map[string]float64{}
	for _, fam := range families {
		name := fam.GetName()
		if !strings.HasPrefix(name, "remem_") {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				if labels != "" {
					labels += ","
				}
				labels += lp.GetName() + "=" + lp.GetValue()
			}
			if labels != "" {
				labels = "{" + labels + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[name+labels] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[name+"_count"+labels] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}
