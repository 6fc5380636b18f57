package metrics

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-webhooks/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DurationBuckets are the default histogram buckets in milliseconds.
var DurationBuckets = []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000, 60000}

// PrometheusRecorder implements core.MetricsRecorder on a dedicated
// registry. Collectors are created on first use; dotted metric names become
// underscored, e.g. webhooks.deliveries.total -> webhooks_deliveries_total.
type PrometheusRecorder struct {
	registry   *prometheus.Registry
	buckets    []float64
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

type Option func(*PrometheusRecorder)

func WithBuckets(buckets []float64) Option {
	return func(r *PrometheusRecorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// WithRuntimeCollectors adds the Go and process collectors to the registry.
func WithRuntimeCollectors() Option {
	return func(r *PrometheusRecorder) {
		r.registry.MustRegister(collectors.NewGoCollector())
		r.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
}

func NewPrometheusRecorder(opts ...Option) *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry:   prometheus.NewRegistry(),
		buckets:    DurationBuckets,
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *PrometheusRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	keys, values := splitTags(tags)
	vec := r.counter(MetricName(name), keys)
	if vec == nil {
		return
	}
	vec.WithLabelValues(values...).Add(float64(value))
}

func (r *PrometheusRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	keys, values := splitTags(tags)
	vec := r.histogram(MetricName(name), keys)
	if vec == nil {
		return
	}
	vec.WithLabelValues(values...).Observe(value)
}

func (r *PrometheusRecorder) counter(name string, labels []string) *prometheus.CounterVec {
	if name == "" {
		return nil
	}
	key := collectorKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[key]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: "Counter " + name + ".",
	}, labels)
	// A name already registered with other labels is skipped.
	if err := r.registry.Register(vec); err != nil {
		return nil
	}
	r.counters[key] = vec
	return vec
}

func (r *PrometheusRecorder) histogram(name string, labels []string) *prometheus.HistogramVec {
	if name == "" {
		return nil
	}
	key := collectorKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[key]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    "Histogram " + name + ".",
		Buckets: r.buckets,
	}, labels)
	if err := r.registry.Register(vec); err != nil {
		return nil
	}
	r.histograms[key] = vec
	return vec
}

// MetricName converts a dotted metric name into a valid Prometheus name.
func MetricName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	for i, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_', ch == ':':
			b.WriteRune(ch)
		case ch >= '0' && ch <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(ch)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func splitTags(tags map[string]string) ([]string, []string) {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		if label := MetricName(key); label != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	labels := make([]string, len(keys))
	values := make([]string, len(keys))
	for i, key := range keys {
		labels[i] = MetricName(key)
		values[i] = tags[key]
	}
	return labels, values
}

func collectorKey(name string, labels []string) string {
	return name + "|" + strings.Join(labels, ",")
}

var _ core.MetricsRecorder = (*PrometheusRecorder)(nil)
