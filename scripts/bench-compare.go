//go:build ignore

// Package main compares Go benchmark output against a baseline to catch
// performance regressions in the search and store hot paths.
//
// Usage:
//
//	go test -bench=. -benchmem ./internal/search/... ./internal/store/... > current.txt
//	go run scripts/bench-compare.go current.txt baseline.txt
//
// Time is the primary metric; B/op and allocs/op are compared too, since
// the MCP server is resident and allocation growth shows up as GC churn
// long before queries get slow. A regression in any metric beyond the
// threshold fails the comparison.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const (
	// RegressionThreshold is the maximum allowed degradation (20%)
	RegressionThreshold = 0.20

	// ImprovementThreshold for highlighting significant improvements
	ImprovementThreshold = 0.10
)

// BenchmarkResult represents a single benchmark measurement.
type BenchmarkResult struct {
	Name        string  `json:"name"`
	Iterations  int     `json:"iterations"`
	NsPerOp     float64 `json:"ns_per_op"`
	BytesPerOp  int     `json:"bytes_per_op"`
	AllocsPerOp int     `json:"allocs_per_op"`
}

// MetricDelta is the relative change of one metric, as a percentage
// (positive = worse).
type MetricDelta struct {
	Metric   string  `json:"metric"`
	Current  float64 `json:"current"`
	Baseline float64 `json:"baseline"`
	DeltaPct float64 `json:"delta_percent"`
}

// ComparisonResult represents the comparison between current and baseline.
type ComparisonResult struct {
	Name        string        `json:"name"`
	Deltas      []MetricDelta `json:"deltas,omitempty"`
	Worst       *MetricDelta  `json:"worst,omitempty"`
	IsRegressed bool          `json:"is_regressed"`
	IsImproved  bool          `json:"is_improved"`
	Status      string        `json:"status"`
}

// Report contains all comparison results.
type Report struct {
	TotalBenchmarks  int                 `json:"total_benchmarks"`
	Regressions      int                 `json:"regressions"`
	Improvements     int                 `json:"improvements"`
	Unchanged        int                 `json:"unchanged"`
	NewBenchmarks    int                 `json:"new_benchmarks"`
	MissingBaseline  int                 `json:"missing_baseline"`
	Results          []*ComparisonResult `json:"results"`
	RegressionFailed bool                `json:"regression_failed"`
}

var (
	outputJSON    = flag.Bool("json", false, "Output results as JSON")
	threshold     = flag.Float64("threshold", RegressionThreshold, "Regression threshold (0.0-1.0)")
	verbose       = flag.Bool("verbose", false, "Show all benchmark comparisons")
	failOnRegress = flag.Bool("fail", true, "Exit with code 1 on regression")
)

// Regex to parse Go benchmark output
// Format: BenchmarkName-N   iterations   ns/op   B/op   allocs/op
var benchmarkRegex = regexp.MustCompile(`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+(\d+)\s+B/op)?(?:\s+(\d+)\s+allocs/op)?`)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <current.txt> <baseline.txt>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Compares benchmark results and detects regressions.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	currentFile := flag.Arg(0)
	baselineFile := flag.Arg(1)

	currentResults, err := parseBenchmarkFile(currentFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing current file %s: %v\n", currentFile, err)
		os.Exit(1)
	}

	baselineResults, err := parseBenchmarkFile(baselineFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing baseline file %s: %v\n", baselineFile, err)
		os.Exit(1)
	}

	report := compare(currentResults, baselineResults, *threshold)

	if *outputJSON {
		outputJSONReport(report)
	} else {
		outputTextReport(report)
	}

	if *failOnRegress && report.RegressionFailed {
		os.Exit(1)
	}
}

// parseBenchmarkFile reads and parses a Go benchmark output file.
func parseBenchmarkFile(path string) (map[string]*BenchmarkResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	results := make(map[string]*BenchmarkResult)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := scanner.Text()
		result := parseBenchmarkLine(line)
		if result != nil {
			results[result.Name] = result
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// parseBenchmarkLine parses a single benchmark output line.
func parseBenchmarkLine(line string) *BenchmarkResult {
	matches := benchmarkRegex.FindStringSubmatch(line)
	if matches == nil {
		return nil
	}

	result := &BenchmarkResult{
		Name: matches[1],
	}

	if iter, err := strconv.Atoi(matches[2]); err == nil {
		result.Iterations = iter
	}
	if ns, err := strconv.ParseFloat(matches[3], 64); err == nil {
		result.NsPerOp = ns
	}
	if len(matches) > 4 && matches[4] != "" {
		if bytes, err := strconv.Atoi(matches[4]); err == nil {
			result.BytesPerOp = bytes
		}
	}
	if len(matches) > 5 && matches[5] != "" {
		if allocs, err := strconv.Atoi(matches[5]); err == nil {
			result.AllocsPerOp = allocs
		}
	}

	return result
}

// metricDeltas computes the per-metric change between two measurements.
// Memory metrics are only compared when both runs recorded them, since
// a run without -benchmem reports zeros.
func metricDeltas(curr, base *BenchmarkResult) []MetricDelta {
	deltas := []MetricDelta{
		delta("ns/op", curr.NsPerOp, base.NsPerOp),
	}
	if curr.BytesPerOp > 0 && base.BytesPerOp > 0 {
		deltas = append(deltas, delta("B/op", float64(curr.BytesPerOp), float64(base.BytesPerOp)))
	}
	if curr.AllocsPerOp > 0 && base.AllocsPerOp > 0 {
		deltas = append(deltas, delta("allocs/op", float64(curr.AllocsPerOp), float64(base.AllocsPerOp)))
	}
	return deltas
}

func delta(metric string, current, baseline float64) MetricDelta {
	d := MetricDelta{Metric: metric, Current: current, Baseline: baseline}
	if baseline > 0 {
		d.DeltaPct = (current - baseline) / baseline * 100
	}
	return d
}

// worstDelta returns the delta with the largest regression.
func worstDelta(deltas []MetricDelta) *MetricDelta {
	worst := &deltas[0]
	for i := range deltas {
		if deltas[i].DeltaPct > worst.DeltaPct {
			worst = &deltas[i]
		}
	}
	return worst
}

// compare compares current results against baseline.
func compare(current, baseline map[string]*BenchmarkResult, threshold float64) *Report {
	report := &Report{
		Results: make([]*ComparisonResult, 0),
	}

	for name, curr := range current {
		report.TotalBenchmarks++

		base, exists := baseline[name]
		if !exists {
			report.NewBenchmarks++
			if *verbose {
				report.Results = append(report.Results, &ComparisonResult{
					Name:   name,
					Status: "NEW",
				})
			}
			continue
		}

		deltas := metricDeltas(curr, base)
		result := &ComparisonResult{
			Name:   name,
			Deltas: deltas,
			Worst:  worstDelta(deltas),
		}

		switch {
		case result.Worst.DeltaPct > threshold*100:
			result.IsRegressed = true
			result.Status = "REGRESSION"
			report.Regressions++
			report.RegressionFailed = true
		case result.Worst.DeltaPct < -ImprovementThreshold*100:
			result.IsImproved = true
			result.Status = "IMPROVED"
			report.Improvements++
		default:
			result.Status = "OK"
			report.Unchanged++
		}

		// Always show regressions and improvements, optionally show all
		if result.IsRegressed || result.IsImproved || *verbose {
			report.Results = append(report.Results, result)
		}
	}

	// Benchmarks present only in the baseline usually mean a renamed or
	// removed test; surface them so baselines get refreshed.
	for name := range baseline {
		if _, exists := current[name]; !exists {
			report.MissingBaseline++
			if *verbose {
				report.Results = append(report.Results, &ComparisonResult{
					Name:   name,
					Status: "MISSING",
				})
			}
		}
	}

	return report
}

// outputTextReport prints a human-readable report.
func outputTextReport(report *Report) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("BENCHMARK COMPARISON REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Printf("Total Benchmarks: %d\n", report.TotalBenchmarks)
	fmt.Printf("Regressions:      %d (> %.0f%% worse on any metric)\n", report.Regressions, *threshold*100)
	fmt.Printf("Improvements:     %d (> %.0f%% better)\n", report.Improvements, ImprovementThreshold*100)
	fmt.Printf("Unchanged:        %d\n", report.Unchanged)
	fmt.Printf("New Benchmarks:   %d\n", report.NewBenchmarks)
	fmt.Printf("Missing:          %d\n", report.MissingBaseline)
	fmt.Println()

	if len(report.Results) > 0 {
		fmt.Println(strings.Repeat("-", 80))
		fmt.Printf("%-46s %-10s %12s %12s %8s\n", "BENCHMARK", "METRIC", "CURRENT", "BASELINE", "DELTA")
		fmt.Println(strings.Repeat("-", 80))

		for _, r := range report.Results {
			if r.Worst == nil {
				fmt.Printf("%-46s %-10s %12s %12s %8s  [%s]\n",
					truncateName(r.Name, 46), "-", "-", "-", "-", r.Status)
				continue
			}
			w := r.Worst
			fmt.Printf("%-46s %-10s %12.0f %12.0f %+7.1f%%  [%s]\n",
				truncateName(r.Name, 46), w.Metric, w.Current, w.Baseline, w.DeltaPct, r.Status)
		}
		fmt.Println(strings.Repeat("-", 80))
	}

	fmt.Println()
	if report.RegressionFailed {
		fmt.Println("FAILED: performance regression detected")
		fmt.Printf("  %d benchmark(s) regressed by more than %.0f%%\n", report.Regressions, *threshold*100)
	} else {
		fmt.Println("PASSED: no significant regressions detected")
	}
	fmt.Println()
}

// outputJSONReport outputs the report as JSON.
func outputJSONReport(report *Report) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// truncateName shortens long benchmark names.
func truncateName(name string, maxLen int) string {
	if len(name) <= maxLen {
		return name
	}
	return name[:maxLen-3] + "..."
}
