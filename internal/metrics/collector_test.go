package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter_SameKeyReturnsSameCounter(t *testing.T) {
	c := NewMetricsCollector()
	a := c.Counter("x_total", "help", `kind="a"`)
	b := c.Counter("x_total", "help", `kind="a"`)
	if a != b {
		t.Fatal("expected identical counter for identical key")
	}
	a.Inc()
	if b.Value() != 1 {
		t.Fatalf("expected 1, got %d", b.Value())
	}
}

func TestRender_CountersAndHistogram(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("x_total", "Things", `kind="a"`).Inc()
	c.Counter("x_total", "Things", `kind="b"`).Inc()
	h := c.Histogram("lat_seconds", "Latency", "", []float64{1, 0.5})
	h.Observe(0.2)
	h.Observe(0.7)

	out := c.Render()
	for _, want := range []string{
		"# TYPE x_total counter",
		`x_total{kind="a"} 1`,
		`x_total{kind="b"} 1`,
		`lat_seconds_bucket{le="0.5"} 1`,
		`lat_seconds_bucket{le="1"} 2`,
		"lat_seconds_count 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
	if strings.Count(out, "# HELP x_total") != 1 {
		t.Errorf("help line should be written once per metric name")
	}
}

func TestHandler_ContentType(t *testing.T) {
	c := NewMetricsCollector()
	rr := httptest.NewRecorder()
	c.Handler()(rr, httptest.NewRequest("GET", "/metrics", nil))
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "memebot_uptime_seconds") {
		t.Fatal("expected uptime metric")
	}
}
