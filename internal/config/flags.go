package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps CLI flag names to their config keys.
var flagKeys = map[string]string{
	"tasks":               "tasks",
	"target":              "target",
	"latency":             "latency",
	"rate":                "rate",
	"arrival":             "arrival",
	"timeout":             "timeout",
	"output":              "output",
	"progress":            "progress",
	"log-level":           "log.level",
	"log-format":          "log.format",
	"log-output":          "log.outputs",
	"log-rotate":          "log.rotation.enable",
	"log-development":     "log.development",
	"tracing-endpoint":    "tracing.endpoint",
	"tracing-protocol":    "tracing.protocol",
	"tracing-insecure":    "tracing.insecure",
	"tracing-sample-rate": "tracing.sample_rate",
	"tracing-service":     "tracing.service_name",
	"tracing-propagate":   "tracing.propagate",
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reqsim",
		Short:         "Dispatch simulated requests concurrently and request a URL",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Dispatch flags
	flags.IntP("tasks", "n", DefaultTasks, "Number of simulated requests to dispatch concurrently")
	flags.Duration("latency", defaultLatency, "Simulated processing time per request")
	flags.IntP("rate", "r", 0, "Launch rate in tasks per second (0 means all at once)")
	flags.String("arrival", string(ArrivalUniform), "Launch spacing when --rate is set: uniform or poisson")

	// Outbound request flags
	flags.String("target", "", "URL to GET after dispatching (skipped when empty)")
	flags.Duration("timeout", 0, "HTTP client timeout (0 keeps transport defaults)")

	// Output flags
	flags.StringP("output", "o", string(OutputText), "Report format: text, json or yaml")
	flags.Bool("progress", false, "Print a live progress line to stderr while dispatching")
	flags.String("config", "", "Path to configuration file (YAML, JSON or TOML)")

	// Logging flags
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.StringSlice("log-output", []string{"stderr"}, "Log destination: stdout, stderr or a file path (repeatable)")
	flags.Bool("log-rotate", false, "Rotate file log outputs")
	flags.Bool("log-development", false, "Development-friendly log output")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (tracing disabled when empty)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Use a plaintext connection to the collector")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.String("tracing-service", "reqsim", "Service name reported to the collector")
	flags.Bool("tracing-propagate", true, "Inject W3C trace context into the outbound request")
}

// bindFlags registers every flag with v under its config key so that
// changed flags win over env and file values.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag %q is not registered", name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
	fmt.Fprintln(out, "\nEvery setting can also be set with a REQSIM_ environment variable, e.g. REQSIM_TASKS=100 or REQSIM_LOG_LEVEL=debug.")
}
