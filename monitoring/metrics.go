// Package monitoring tracks prediction activity and artifact freshness.
package monitoring

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

const (
	MetricPredictions     = "predictions_total"
	MetricPredictionError = "prediction_errors_total"
	MetricLatency         = "prediction_latency_ms"

	// maxLatencySamples bounds the latency window; older samples are dropped.
	maxLatencySamples = 1000
)

// MetricsCollector keeps in-memory prediction counters and a latency window.
type MetricsCollector struct {
	mu        sync.RWMutex
	counters  map[string]map[string]int64
	latencies []float64
	startTime time.Time
}

// LatencySummary reports latency in milliseconds over the current window.
type LatencySummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	Max   float64 `json:"max_ms"`
}

// Summary is a point-in-time copy of all metrics.
type Summary struct {
	Predictions int64            `json:"predictions"`
	ByLabel     map[string]int64 `json:"by_label"`
	Errors      map[string]int64 `json:"errors"`
	Latency     LatencySummary   `json:"latency"`
	Uptime      string           `json:"uptime"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:  make(map[string]map[string]int64),
		startTime: time.Now(),
	}
}

// ObservePrediction records one successful prediction.
func (mc *MetricsCollector) ObservePrediction(label string, elapsed time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.incr(MetricPredictions, label)
	mc.latencies = append(mc.latencies, float64(elapsed.Microseconds())/1000)
	if len(mc.latencies) > maxLatencySamples {
		mc.latencies = mc.latencies[len(mc.latencies)-maxLatencySamples:]
	}
}

// ObserveError records one failed prediction by error class.
func (mc *MetricsCollector) ObserveError(kind string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.incr(MetricPredictionError, kind)
}

func (mc *MetricsCollector) incr(name, label string) {
	byLabel, ok := mc.counters[name]
	if !ok {
		byLabel = make(map[string]int64)
		mc.counters[name] = byLabel
	}
	byLabel[label]++
}

// Summary returns counters and latency statistics.
func (mc *MetricsCollector) Summary() Summary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	summary := Summary{
		ByLabel: copyCounts(mc.counters[MetricPredictions]),
		Errors:  copyCounts(mc.counters[MetricPredictionError]),
		Uptime:  time.Since(mc.startTime).Round(time.Second).String(),
	}
	for _, n := range summary.ByLabel {
		summary.Predictions += n
	}
	summary.Latency = summarizeLatency(mc.latencies)
	return summary
}

func summarizeLatency(samples []float64) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	data := stats.Float64Data(samples)
	summary := LatencySummary{Count: len(samples)}
	summary.Mean, _ = stats.Mean(data)
	summary.P50, _ = stats.Median(data)
	summary.P95, _ = stats.Percentile(data, 95)
	summary.Max, _ = stats.Max(data)
	return summary
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ExportPrometheus renders the counters in the Prometheus text format.
func (mc *MetricsCollector) ExportPrometheus() string {
	summary := mc.Summary()
	var b strings.Builder

	writeCounter(&b, MetricPredictions, "Predictions served, by label", "label", summary.ByLabel)
	writeCounter(&b, MetricPredictionError, "Failed predictions, by error class", "kind", summary.Errors)

	fmt.Fprintf(&b, "# HELP %s Prediction latency over the last %d requests\n", MetricLatency, maxLatencySamples)
	fmt.Fprintf(&b, "# TYPE %s summary\n", MetricLatency)
	fmt.Fprintf(&b, "%s{quantile=\"0.5\"} %g\n", MetricLatency, summary.Latency.P50)
	fmt.Fprintf(&b, "%s{quantile=\"0.95\"} %g\n", MetricLatency, summary.Latency.P95)
	fmt.Fprintf(&b, "%s_count %d\n", MetricLatency, summary.Latency.Count)
	return b.String()
}

func writeCounter(b *strings.Builder, name, help, labelName string, values map[string]int64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s{%s=%q} %d\n", name, labelName, k, values[k])
	}
}
