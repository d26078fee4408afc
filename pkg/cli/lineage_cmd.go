package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"workgov/internal/domain"
)

func newLineageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Query and verify the provenance graph",
	}
	cmd.AddCommand(newLineageTraceCmd(), newLineageVerifyCmd(), newLineageLinkStatusCmd())
	return cmd
}

func newLineageTraceCmd() *cobra.Command {
	var (
		nodeID    string
		direction string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Trace a node's ancestors or descendants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			dir := domain.TraceUp
			switch direction {
			case "up", "upstream":
			case "down", "downstream":
				dir = domain.TraceDown
			default:
				return fmt.Errorf("unknown direction %q: use up or down", direction)
			}

			trace, err := rt.app.Services.Lineage.Trace(cmd.Context(), nodeID, dir)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(os.Stdout, trace)
			}

			header := []string{"ID", "TYPE", "LABEL", "URL"}
			rows := make([][]string, len(trace))
			for i, n := range trace {
				rows[i] = []string{n.ID, string(n.Type), n.Label, n.URL}
			}
			return printTable(os.Stdout, header, rows)
		},
	}

	cmd.Flags().StringVarP(&nodeID, "node", "n", "", "Node ID to trace from")
	cmd.Flags().StringVarP(&direction, "direction", "d", "up", "Trace direction (up, down)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}

func newLineageVerifyCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify policy link URLs",
		Long:  "Re-check every cites_policy link target. Failing active links are marked stale and reported on every run until re-linked or retired with link-status.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			broken, err := rt.app.Services.Lineage.VerifyLinks(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				if broken == nil {
					broken = []domain.BrokenLink{}
				}
				return printJSON(os.Stdout, broken)
			}

			if len(broken) == 0 {
				fmt.Println("all policy links verified")
				return nil
			}
			header := []string{"EDGE", "NODE", "URL", "REASON", "CHECKED_AT"}
			rows := make([][]string, len(broken))
			for i, b := range broken {
				rows[i] = []string{b.EdgeID, b.NodeID, b.URL, b.Reason, b.CheckedAt.Format(time.RFC3339)}
			}
			return printTable(os.Stdout, header, rows)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newLineageLinkStatusCmd() *cobra.Command {
	var (
		edgeID string
		status string
	)

	cmd := &cobra.Command{
		Use:   "link-status",
		Short: "Re-link or retire a stale policy link",
		Long:  "Apply a manual decision to a stale cites_policy edge: set it back to active (re-link) or retire it.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.app.Services.Lineage.UpdateLinkStatus(cmd.Context(), edgeID, domain.LinkStatus(status)); err != nil {
				return err
			}
			fmt.Printf("edge %s is now %s\n", edgeID, status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&edgeID, "edge", "e", "", "Edge ID")
	cmd.Flags().StringVarP(&status, "status", "s", "", "New status (active, retired)")
	_ = cmd.MarkFlagRequired("edge")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}
