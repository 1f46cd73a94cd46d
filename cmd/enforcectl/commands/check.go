package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/machshop/enforcement/pkg/enforcement"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate enforcement decisions",
		Long: `Evaluate whether a production action is allowed under the effective
workflow configuration.

Decisions never mutate production state: the caller performs the status
transition only after an allowed decision. Any bypasses applied by a
FLEXIBLE or HYBRID configuration are appended to the audit trail.`,
	}

	cmd.AddCommand(newCheckRecordCommand())
	cmd.AddCommand(newCheckStartCommand())
	cmd.AddCommand(newCheckCompleteCommand())

	return cmd
}

func newCheckRecordCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "can-record <work-order-id>",
		Short: "Check whether performance may be recorded against a work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			decision, err := a.engine.CanRecordPerformance(ctx, args[0])
			if err != nil {
				return err
			}

			recordBypasses(ctx, a, args[0], "", "record_performance", decision, userID)
			return printResult(decision)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user to attribute audited bypasses to")

	return cmd
}

func newCheckStartCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "can-start <work-order-id> <operation-id>",
		Short: "Check whether an operation may be started",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			decision, err := a.engine.CanStartOperation(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			recordBypasses(ctx, a, args[0], args[1], "start_operation", decision, userID)
			return printResult(decision)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user to attribute audited bypasses to")

	return cmd
}

func newCheckCompleteCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "can-complete <work-order-id> <operation-id>",
		Short: "Check whether an operation may be completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			decision, err := a.engine.CanCompleteOperation(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			recordBypasses(ctx, a, args[0], args[1], "complete_operation", decision, userID)
			return printResult(decision)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user to attribute audited bypasses to")

	return cmd
}

// recordBypasses appends an audit entry when a decision applied bypasses.
// Audit failures are logged inside the recorder and never fail the command.
func recordBypasses(ctx context.Context, a *app, workOrderID, operationID, action string, decision *enforcement.Decision, userID string) {
	if len(decision.BypassesApplied) == 0 {
		return
	}
	_, _ = a.recorder.RecordEnforcementBypass(ctx, workOrderID, operationID, action, decision, userID)
}
