package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/torosent/reqsim/internal/metrics"
)

// Report is everything printed at the end of a run.
type Report struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	Tasks      TaskSummary    `json:"tasks" yaml:"tasks"`
	Counter    int32          `json:"counter" yaml:"counter"`
	Recoveries int64          `json:"recoveries" yaml:"recoveries"`
	Stats      metrics.Stats  `json:"stats" yaml:"stats"`
	Request    *RequestReport `json:"request,omitempty" yaml:"request,omitempty"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// TaskSummary mirrors the dispatch result.
type TaskSummary struct {
	Dispatched int   `json:"dispatched" yaml:"dispatched"`
	Launched   int64 `json:"launched" yaml:"launched"`
	Completed  int64 `json:"completed" yaml:"completed"`
	Failed     int64 `json:"failed" yaml:"failed"`
}

// RequestReport describes the outbound GET, if one was made.
type RequestReport struct {
	URL        string  `json:"url" yaml:"url"`
	Success    bool    `json:"success" yaml:"success"`
	StatusCode int     `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Body       string  `json:"body,omitempty" yaml:"body,omitempty"`
	LatencyMs  float64 `json:"latency_ms" yaml:"latency_ms"`
	Error      string  `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind  string  `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	stats := r.Stats
	fmt.Fprintln(w, "\n--- Dispatch Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", r.RunID)
	fmt.Fprintf(w, "Tasks:             %d\n", r.Tasks.Dispatched)
	if r.Tasks.Launched != int64(r.Tasks.Dispatched) {
		fmt.Fprintf(w, "Launched:          %d\n", r.Tasks.Launched)
	}
	fmt.Fprintf(w, "Completed:         %d\n", r.Tasks.Completed)
	fmt.Fprintf(w, "Failed:            %d\n", r.Tasks.Failed)
	fmt.Fprintf(w, "Final count:       %d\n", r.Counter)
	if r.Recoveries > 0 {
		fmt.Fprintf(w, "Lock recoveries:   %d\n", r.Recoveries)
	}
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Tasks/sec:         %.2f\n", stats.TasksPerSec)

	if stats.Total > 0 {
		fmt.Fprintln(w, "\nLatency:")
		fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
		fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
		fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
		fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
		fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
		fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		names := make([]string, 0, len(stats.Errors))
		for name := range stats.Errors {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if stats.Errors[names[i]] == stats.Errors[names[j]] {
				return names[i] < names[j]
			}
			return stats.Errors[names[i]] > stats.Errors[names[j]]
		})
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", name, stats.Errors[name])
		}
	}
	if r.Error != "" {
		fmt.Fprintf(w, "\nFirst failure:     %s\n", r.Error)
	}

	if req := r.Request; req != nil {
		fmt.Fprintln(w, "\nRequest:")
		fmt.Fprintf(w, "  URL:             %s\n", req.URL)
		switch {
		case req.ErrorKind != "":
			fmt.Fprintf(w, "  Result:          transport error (%s)\n", req.ErrorKind)
			fmt.Fprintf(w, "  Error:           %s\n", req.Error)
		case req.Success:
			fmt.Fprintf(w, "  Result:          success (%d)\n", req.StatusCode)
		default:
			fmt.Fprintf(w, "  Result:          failure (%d)\n", req.StatusCode)
			if req.Body != "" {
				fmt.Fprintf(w, "  Body:            %s\n", req.Body)
			}
		}
		fmt.Fprintf(w, "  Latency:         %.2fms\n", req.LatencyMs)
	}

	if len(stats.StatusBuckets) > 0 {
		fmt.Fprintln(w, "\nStatus Buckets:")
		writeStatusBuckets(w, stats.StatusBuckets, "  ")
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func writeStatusBuckets(w io.Writer, buckets map[string]map[string]int, indent string) {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(
			w,
			"%s%s %s (%s): %d\n",
			indent,
			strings.ToUpper(row.Protocol),
			row.Code,
			row.Class,
			row.Count,
		)
	}
}
