package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Adapter delegates Sink operations to an external Prometheus registry.
// Metric names reach the adapter dynamically as dot-separated strings, so
// unlike a typical promauto call site, counters/histograms are created
// lazily on first use and cached by name rather than declared up front.
type Adapter struct {
	namespace  string
	registerer prometheus.Registerer

	mu        sync.Mutex
	counters  map[string]prometheus.Counter
	timers    map[string]prometheus.Histogram
	gauges    map[string]struct{} // dedupe only; the GaugeFunc itself owns the read callback
}

// NewAdapter builds a Sink backed by registerer (typically
// prometheus.DefaultRegisterer or a per-test prometheus.NewRegistry()).
// namespace is prepended to every metric name with an underscore, Prometheus
// style; pass "" for no prefix.
func NewAdapter(registerer prometheus.Registerer, namespace string) *Adapter {
	return &Adapter{
		namespace:  namespace,
		registerer: registerer,
		counters:   make(map[string]prometheus.Counter),
		timers:     make(map[string]prometheus.Histogram),
		gauges:     make(map[string]struct{}),
	}
}

func (a *Adapter) fqName(name string) string {
	sanitized := strings.ReplaceAll(name, ".", "_")
	if a.namespace == "" {
		return sanitized
	}
	return a.namespace + "_" + sanitized
}

func (a *Adapter) IncrementCounter(name string, delta float64) {
	a.mu.Lock()
	c, ok := a.counters[name]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Name: a.fqName(name),
			Help: "rexcache counter " + name,
		})
		a.registerer.MustRegister(c)
		a.counters[name] = c
	}
	a.mu.Unlock()
	c.Add(delta)
}

func (a *Adapter) RecordTimer(name string, nanos int64) {
	a.mu.Lock()
	h, ok := a.timers[name]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    a.fqName(name),
			Help:    "rexcache timer (nanoseconds) " + name,
			Buckets: prometheus.ExponentialBuckets(1000, 4, 12), // 1us .. ~4.2s
		})
		a.registerer.MustRegister(h)
		a.timers[name] = h
	}
	a.mu.Unlock()
	h.Observe(float64(nanos))
}

func (a *Adapter) RegisterGauge(name string, read func() float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.gauges[name]; ok {
		return
	}
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: a.fqName(name),
		Help: "rexcache gauge " + name,
	}, read)
	a.registerer.MustRegister(g)
	a.gauges[name] = struct{}{}
}

var _ Sink = (*Adapter)(nil)
