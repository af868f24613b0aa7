// Package metrics provides a small Prometheus-compatible metrics collector
// for memebot. Output is text/plain in the Prometheus exposition format.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide metrics collector.
var Collector = NewMetricsCollector()

// MetricsCollector aggregates counters and histograms.
type MetricsCollector struct {
	counters   sync.Map // key -> *Counter
	histograms sync.Map // key -> *Histogram
	startTime  time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	help    string
	labels  string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// Since observes the seconds elapsed from start.
func (h *Histogram) Since(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Counter returns or creates the counter for name and label set.
func (c *MetricsCollector) Counter(name, help, labels string) *Counter {
	key := name + "{" + labels + "}"
	if v, ok := c.counters.Load(key); ok {
		return v.(*Counter)
	}
	actual, _ := c.counters.LoadOrStore(key, &Counter{name: name, help: help, labels: labels})
	return actual.(*Counter)
}

// Histogram returns or creates the histogram for name and label set.
func (c *MetricsCollector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	key := name + "{" + labels + "}"
	if v, ok := c.histograms.Load(key); ok {
		return v.(*Histogram)
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	hb := make([]histBucket, len(sorted))
	for i, b := range sorted {
		hb[i] = histBucket{le: b}
	}
	actual, _ := c.histograms.LoadOrStore(key, &Histogram{name: name, help: help, labels: labels, buckets: hb})
	return actual.(*Histogram)
}

// Render writes all metrics in Prometheus text format, sorted by key so the
// output is stable between scrapes.
func (c *MetricsCollector) Render() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP memebot_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE memebot_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "memebot_uptime_seconds %d\n\n", int64(c.Uptime().Seconds()))

	var counters []*Counter
	c.counters.Range(func(_, value any) bool {
		counters = append(counters, value.(*Counter))
		return true
	})
	sort.Slice(counters, func(i, j int) bool {
		if counters[i].name != counters[j].name {
			return counters[i].name < counters[j].name
		}
		return counters[i].labels < counters[j].labels
	})
	helpWritten := make(map[string]bool)
	for _, ctr := range counters {
		if !helpWritten[ctr.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
			fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
			helpWritten[ctr.name] = true
		}
		if ctr.labels != "" {
			fmt.Fprintf(&sb, "%s{%s} %d\n", ctr.name, ctr.labels, ctr.Value())
		} else {
			fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
		}
	}

	c.histograms.Range(func(_, value any) bool {
		h := value.(*Histogram)
		h.mu.Lock()
		defer h.mu.Unlock()

		fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
		fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
		prefix := h.name + "_bucket{"
		if h.labels != "" {
			prefix += h.labels + ","
		}
		for _, b := range h.buckets {
			le := fmt.Sprintf("%g", b.le)
			if math.IsInf(b.le, 1) {
				le = "+Inf"
			}
			fmt.Fprintf(&sb, "%sle=\"%s\"} %d\n", prefix, le, b.count)
		}
		if h.labels != "" {
			fmt.Fprintf(&sb, "%s_count{%s} %d\n", h.name, h.labels, h.count)
			fmt.Fprintf(&sb, "%s_sum{%s} %f\n", h.name, h.labels, h.sum)
		} else {
			fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
			fmt.Fprintf(&sb, "%s_sum %f\n", h.name, h.sum)
		}
		return true
	})

	return sb.String()
}

// Handler serves Render over HTTP.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, c.Render())
	}
}

// Pre-defined metrics used across the application.
var (
	EventsInline    = Collector.Counter("memebot_events_total", "Inbound events handled", `kind="inline_query"`)
	EventsMessage   = Collector.Counter("memebot_events_total", "Inbound events handled", `kind="message"`)
	EventsIgnored   = Collector.Counter("memebot_events_total", "Inbound events handled", `kind="ignored"`)
	BackendRequests = Collector.Counter("memebot_backend_requests_total", "Backend HTTP requests issued", "")
	BackendFailures = Collector.Counter("memebot_backend_failures_total", "Backend requests that degraded or failed", "")
	ReplyFallbacks  = Collector.Counter("memebot_reply_fallbacks_total", "Replies that fell back to a lower-fidelity primitive", "")
	AdminReports    = Collector.Counter("memebot_admin_reports_total", "Diagnostics sent to the admin chat", "")
	WebhookRejected = Collector.Counter("memebot_webhook_rejected_total", "Webhook requests rejected before routing", "")

	BackendLatency = Collector.Histogram("memebot_backend_latency_seconds", "Backend request latency in seconds", "",
		[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10})
)
