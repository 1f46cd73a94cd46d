package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the enforcement audit trail",
	}

	cmd.AddCommand(newAuditTrailCommand())

	return cmd
}

func newAuditTrailCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trail <work-order-id>",
		Short: "List audit entries for a work order in chronological order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.recorder.GetAuditTrail(ctx, args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printResult(entries)
			}

			if len(entries) == 0 {
				fmt.Println("no audit entries")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%s  %-20s mode=%-8s user=%-12s bypasses=[%s]\n",
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.Action,
					e.EnforcementMode,
					e.UserID,
					strings.Join(e.Bypasses, ", "),
				)
			}

			return nil
		},
	}
}
