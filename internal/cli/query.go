package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/gcscope/pkg/jsonpath"
)

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <report.json> <path>...",
		Short: "Extract values from a JSON report",
		Long: `Extract values from a JSON report written by simulate.

Paths are JSONPath ($.collector.degenerated) or gjson queries
(phases.#(key=="total_pause").p99). A single path prints the bare value;
several print one "path: value" line each.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read report: %w", err)
			}
			doc := string(data)
			paths := args[1:]
			w := cmd.OutOrStdout()

			if len(paths) == 1 {
				value, err := jsonpath.Extract(doc, paths[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(w, value)
				return nil
			}

			named := make(map[string]string, len(paths))
			for _, p := range paths {
				named[p] = p
			}
			values, err := jsonpath.ExtractMultiple(doc, named)
			for _, p := range paths {
				if v, ok := values[p]; ok {
					fmt.Fprintf(w, "%s: %s\n", p, v)
				}
			}
			return err
		},
	}
}
