package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultTasks matches the number of simulated requests the tool has always
// dispatched when nothing else is configured.
const DefaultTasks = 500

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type ArrivalModel string

const (
	ArrivalUniform ArrivalModel = "uniform"
	ArrivalPoisson ArrivalModel = "poisson"
)

type Config struct {
	Tasks      int           `mapstructure:"tasks"`
	TargetURL  string        `mapstructure:"target"`
	Latency    time.Duration `mapstructure:"latency"`
	Rate       int           `mapstructure:"rate"`
	Arrival    ArrivalModel  `mapstructure:"arrival"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Output     OutputFormat  `mapstructure:"output"`
	Progress   bool          `mapstructure:"progress"`
	Log        LogConfig     `mapstructure:"log"`
	Tracing    TracingConfig `mapstructure:"tracing"`
	ConfigFile string        `mapstructure:"-"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs     []string       `mapstructure:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls rotation of file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
	Propagate   bool    `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is configured, either
// explicitly or through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	if strings.TrimSpace(t.Endpoint) != "" {
		return true
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace headers go on outbound requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Enabled() && t.Propagate
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if c.Tasks < 0 {
		issues = append(issues, "tasks must be >= 0")
	}
	if c.Latency < 0 {
		issues = append(issues, "latency must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}

	switch c.Arrival {
	case "", ArrivalUniform, ArrivalPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival %q is not supported (use uniform or poisson)", c.Arrival))
	}

	switch c.Output {
	case "", OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output %q is not supported (use text, json or yaml)", c.Output))
	}

	if target := strings.TrimSpace(c.TargetURL); target != "" {
		issues = append(issues, validateTarget(target)...)
	}

	issues = append(issues, validateLogConfig(c.Log)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	// Unbounded fan-out is allowed, but worth a heads-up.
	if c.Tasks > 100000 {
		fmt.Fprintf(os.Stderr, "WARNING: %d tasks will each start a goroutine at once.\n", c.Tasks)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTarget(target string) []string {
	u, err := url.Parse(target)
	if err != nil {
		return []string{fmt.Sprintf("target: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []string{fmt.Sprintf("target: scheme must be http or https, got %q", u.Scheme)}
	}
	if u.Host == "" {
		return []string{"target: host is required"}
	}
	return nil
}

func validateLogConfig(l LogConfig) []string {
	var issues []string
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, fmt.Sprintf("log: unsupported level %q", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log: format must be 'console' or 'json', got %q", l.Format))
	}
	for idx, out := range l.Outputs {
		if strings.TrimSpace(out) == "" {
			issues = append(issues, fmt.Sprintf("log.outputs[%d]: must not be empty", idx))
		}
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
