package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/gcscope/internal/config"
	"github.com/wesleyorama2/gcscope/internal/output"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>...",
		Short: "Check simulation files without running them",
		Long: `Check one or more simulation files against the schema and the
configuration rules, including threshold expressions.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				cfg, err := config.LoadConfig(path)
				if err == nil {
					config.ApplyDefaults(cfg)
					err = cfg.Validate()
				}
				if err != nil {
					failed++
					fmt.Fprintf(w, "%s %s\n%v\n", output.ErrorIcon(color.NoColor), path, err)
					continue
				}
				fmt.Fprintf(w, "%s %s: %s (%s, %s)\n",
					output.SuccessIcon(color.NoColor), path, cfg.Name,
					cfg.Simulation.Mode, time.Duration(cfg.Simulation.Duration))
				if cfg.Thresholds == nil {
					fmt.Fprintf(w, "  %s no thresholds configured\n", output.WarningIcon(color.NoColor))
				}
			}
			if failed > 0 {
				return errSilent
			}
			return nil
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the simulation file JSON schema",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Schema())
		},
	}
}
