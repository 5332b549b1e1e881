package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const scenarioMetric = "scenario"

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type callReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time             `json:"started_at"`
	DurationSeconds   float64               `json:"duration_seconds"`
	TotalScenarios    int64                 `json:"total_scenarios"`
	SuccessScenarios  int64                 `json:"success_scenarios"`
	FailedScenarios   int64                 `json:"failed_scenarios"`
	ErrorRate         float64               `json:"error_rate"`
	RPS               float64               `json:"rps"`
	ScenarioLatencyMs latencySummary        `json:"scenario_latency_ms"`
	Calls             map[string]callReport `json:"calls"`
}

type callStats struct {
	calls     int64
	success   int64
	failed    int64
	statuses  map[string]int64
	latencies []float64
}

// collector агрегирует латентность и статусы по именам вызовов.
type collector struct {
	mu    sync.Mutex
	calls map[string]*callStats
}

func newCollector() *collector {
	return &collector{calls: make(map[string]*callStats)}
}

// record учитывает вызов. status — HTTP-код или метка ошибки транспорта.
func (c *collector) record(name string, latency time.Duration, status string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, found := c.calls[name]
	if !found {
		stats = &callStats{statuses: make(map[string]int64)}
		c.calls[name] = stats
	}

	stats.calls++
	if ok {
		stats.success++
	} else {
		stats.failed++
	}
	stats.statuses[status]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Calls:           make(map[string]callReport, len(c.calls)),
	}

	for name, stats := range c.calls {
		statuses := make(map[string]int64, len(stats.statuses))
		for status, count := range stats.statuses {
			statuses[status] = count
		}
		result.Calls[name] = callReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Statuses:  statuses,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	if scenario, ok := result.Calls[scenarioMetric]; ok {
		result.TotalScenarios = scenario.Calls
		result.SuccessScenarios = scenario.Success
		result.FailedScenarios = scenario.Failed
		result.ErrorRate = scenario.ErrorRate
		result.ScenarioLatencyMs = scenario.LatencyMs
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	return result
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, runTarget(cfg),
		result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate,
	)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min, result.ScenarioLatencyMs.Avg, result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95, result.ScenarioLatencyMs.P99, result.ScenarioLatencyMs.Max,
	)

	names := make([]string, 0, len(result.Calls))
	for name := range result.Calls {
		if name != scenarioMetric {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Calls[name]
		_, _ = fmt.Fprintf(w, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
