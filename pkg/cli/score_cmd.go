package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"workgov/internal/domain"
)

func newScoreCmd() *cobra.Command {
	var (
		tables []string
		asJSON bool
		asCSV  bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Run a quality scoring batch",
		Long:  "Score every catalog table (or just --table ones) across all nine dimensions and append the snapshots to history.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON && asCSV {
				return fmt.Errorf("--json and --csv are mutually exclusive")
			}

			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			var snaps []domain.QualitySnapshot
			if len(tables) == 0 {
				snaps, err = rt.app.Services.Quality.RunAll(cmd.Context())
			} else {
				snaps, err = rt.app.Services.Quality.RunTables(cmd.Context(), tables)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(os.Stdout, snaps)
			}

			header := []string{"TABLE", "COMPOSITE", "INSUFFICIENT_DATA", "NOTE"}
			rows := make([][]string, len(snaps))
			for i, s := range snaps {
				rows[i] = []string{
					s.TableName,
					formatScore(s.CompositeScore),
					fmt.Sprintf("%t", s.InsufficientData),
					s.Note,
				}
			}
			if asCSV {
				return printCSV(os.Stdout, header, rows)
			}
			return printTable(os.Stdout, header, rows)
		},
	}

	cmd.Flags().StringSliceVarP(&tables, "table", "t", nil, "Score only the named tables (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "Output CSV")
	return cmd
}
