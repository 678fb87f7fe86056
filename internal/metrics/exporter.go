package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes the collector's counters for Prometheus. Monotonic
// counts are CounterFuncs that read the atomics at scrape time, so a
// scrape is always current and never observes a stale refresh.
type Exporter struct {
	registry    *prometheus.Registry
	modelLoaded prometheus.Gauge
}

// NewExporter builds an exporter over the collector. modelLoaded is fixed
// at construction; everything else tracks the collector live.
func NewExporter(collector *Collector, modelLoaded bool) *Exporter {
	e := &Exporter{registry: prometheus.NewRegistry()}

	counter := func(name, help string, labels prometheus.Labels, read func(Stats) uint64) {
		e.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 {
			return float64(read(collector.GetStats()))
		}))
	}

	verdictHelp := "Final verdicts returned by the detector, by verdict."
	counter("dgalab_verdicts_total", verdictHelp,
		prometheus.Labels{"verdict": "DGA"}, func(s Stats) uint64 { return s.DGA })
	counter("dgalab_verdicts_total", verdictHelp,
		prometheus.Labels{"verdict": "NOT_DGA"}, func(s Stats) uint64 { return s.NotDGA })
	counter("dgalab_verdicts_total", verdictHelp,
		prometheus.Labels{"verdict": "UNKNOWN"}, func(s Stats) uint64 { return s.Unknown })

	counter("dgalab_checks_total",
		"Domain check requests received.",
		nil, func(s Stats) uint64 { return s.Checks })
	counter("dgalab_overrides_applied_total",
		"Verdicts decided by a manual override.",
		nil, func(s Stats) uint64 { return s.OverridesApplied })
	counter("dgalab_override_writes_total",
		"Manual override writes.",
		nil, func(s Stats) uint64 { return s.OverrideWrites })
	counter("dgalab_override_store_errors_total",
		"Override store lookups that failed and degraded to no-override.",
		nil, func(s Stats) uint64 { return s.StoreErrors })
	counter("dgalab_model_errors_total",
		"Classifications that failed and were coerced to UNKNOWN.",
		nil, func(s Stats) uint64 { return s.ModelErrors })
	counter("dgalab_invalid_domains_total",
		"Queries rejected during feature extraction.",
		nil, func(s Stats) uint64 { return s.InvalidDomains })

	e.modelLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dgalab_model_loaded",
		Help: "1 when the decision tree model is loaded, 0 in fallback mode.",
	})
	e.registry.MustRegister(e.modelLoaded)
	if modelLoaded {
		e.modelLoaded.Set(1)
	}

	return e
}

// Handler returns the scrape handler for mounting on an HTTP mux.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
