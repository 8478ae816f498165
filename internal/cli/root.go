// Package cli implements the gcscope command line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// errSilent marks failures whose details were already printed.
var errSilent = errors.New("command failed")

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var (
		logLevel string
		noColor  bool
	)

	root := &cobra.Command{
		Use:     "gcscope",
		Short:   "Simulate and observe a concurrent garbage collector",
		Version: version,
		Long: `gcscope drives a synthetic concurrent collector against paced allocating
mutators and records what a production collector would: phase timings,
allocation latency, per-cycle trace events and memory manager statistics.

Runs are described by a YAML or JSON simulation file and can be checked
against pause, allocation and cycle thresholds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			logrus.SetLevel(level)
			logrus.SetOutput(cmd.ErrOrStderr())
			if noColor {
				color.NoColor = true
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newSimulateCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newSchemaCmd())
	return root
}

// Execute runs the command line. This is called by main.main().
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil && !errors.Is(err, errSilent) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
