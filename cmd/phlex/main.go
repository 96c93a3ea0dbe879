// Command phlex runs a configured processing graph to completion.
//
// Usage:
//
//	phlex <config-file>
//
// Exit codes: 0 on success, 1 on validation error, 2 on runtime
// algorithm error.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/phlex-hep/phlex/pkg/phlex/driver"
	_ "github.com/phlex-hep/phlex/plugins/demo" // registers the demo job
)

func main() {
	os.Exit(run())
}

func run() int {
	var verbose bool
	var dot bool
	code := driver.ExitOK

	cmd := &cobra.Command{
		Use:           "phlex <config-file>",
		Short:         "Run a phlex processing graph",
		Long:          "phlex assembles a data-processing graph from the given configuration file and runs it to completion.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel := slog.LevelInfo
			if verbose {
				logLevel = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			}))
			slog.SetDefault(logger)

			if dot {
				return dumpDot(args[0], logger, &code)
			}
			code = driver.Run(args[0], logger)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().BoolVar(&dot, "dot", false, "print the wired topology in DOT format instead of running")

	if err := cmd.Execute(); err != nil {
		return driver.ExitValidation
	}
	return code
}

// dumpDot assembles and validates the graph, then prints its topology.
func dumpDot(configPath string, logger *slog.Logger, code *int) error {
	compiled, err := driver.Validate(configPath)
	if err != nil {
		logger.Error("graph validation failed", "error", err)
		*code = driver.ExitValidation
		return nil
	}
	os.Stdout.WriteString(compiled.Dot())
	return nil
}
