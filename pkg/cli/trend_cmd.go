package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newTrendCmd() *cobra.Command {
	var (
		table  string
		window int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show a table's quality trend and degradation signal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			snaps, err := rt.app.Services.Quality.GetTrend(cmd.Context(), table, window)
			if err != nil {
				return err
			}
			signal, err := rt.app.Services.Quality.Detect(cmd.Context(), table)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(os.Stdout, map[string]any{
					"table_name": table,
					"snapshots":  snaps,
					"signal":     signal,
				})
			}

			header := []string{"MEASURED_AT", "COMPOSITE", "NOTE"}
			rows := make([][]string, len(snaps))
			for i, s := range snaps {
				rows[i] = []string{
					s.MeasuredAt.Format(time.RFC3339),
					formatScore(s.CompositeScore),
					s.Note,
				}
			}
			if err := printTable(os.Stdout, header, rows); err != nil {
				return err
			}

			if signal != nil {
				fmt.Printf("\ndegradation detected: trigger=%s current=%.1f", signal.Trigger, signal.CurrentScore)
				if signal.Slope != nil {
					fmt.Printf(" slope=%.2f", *signal.Slope)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "Table name")
	cmd.Flags().IntVarP(&window, "window", "w", 7, "Trailing snapshot window")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}
