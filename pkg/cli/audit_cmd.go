package cli

import (
	"os"

	"github.com/spf13/cobra"

	"workgov/internal/domain"
)

func newAuditCmd() *cobra.Command {
	var (
		framework string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run governance audits",
		Long:  "Run one framework's checklist (--framework DAMA|DADM|DQMF|classification) or all of them.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			frameworks := domain.Frameworks
			if framework != "" {
				frameworks = []domain.Framework{domain.Framework(framework)}
			}

			var entries []domain.ComplianceEntry
			for _, f := range frameworks {
				batch, err := rt.app.Services.Audits.RunAudit(cmd.Context(), f)
				if err != nil {
					return err
				}
				entries = append(entries, batch...)
			}

			if asJSON {
				return printJSON(os.Stdout, entries)
			}

			header := []string{"FRAMEWORK", "CHECK", "ARTIFACT", "STATUS", "NOTE"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{
					string(e.Framework), e.CheckName, e.ArtifactID, string(e.Status), e.Note,
				}
			}
			return printTable(os.Stdout, header, rows)
		},
	}

	cmd.Flags().StringVarP(&framework, "framework", "f", "", "Audit framework (default: all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
