package commands

import (
	"github.com/spf13/cobra"

	"github.com/machshop/enforcement/pkg/quality"
)

func newQualityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Evaluate quality enforcement questions",
		Long: `Answer quality-specific enforcement questions: whether an inspection
is required for an operation, whether an action needs an electronic
signature, and whether a proposed NCR disposition is legal for its
severity.`,
	}

	cmd.AddCommand(newQualityInspectionCommand())
	cmd.AddCommand(newQualitySignatureCommand())
	cmd.AddCommand(newQualityDispositionCommand())

	return cmd
}

func newQualityInspectionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspection-required <operation-id>",
		Short: "Check whether a quality inspection is required for an operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := a.gate.IsInspectionRequired(ctx, args[0])
			if err != nil {
				return err
			}

			return printResult(req)
		},
	}
}

func newQualitySignatureCommand() *cobra.Command {
	var siteID string

	cmd := &cobra.Command{
		Use:   "signature-required <action-type>",
		Short: "Check whether an action requires an electronic signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			decision, err := a.gate.IsElectronicSignatureRequired(ctx, args[0], siteID)
			if err != nil {
				return err
			}

			return printResult(decision)
		},
	}

	cmd.Flags().StringVar(&siteID, "site", "", "site to check site-specific requirements for")

	return cmd
}

func newQualityDispositionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-disposition <ncr-id> <disposition>",
		Short: "Check whether a disposition is legal for an NCR's severity",
		Long: `Validate a proposed NCR disposition against the configured disposition
rules. Without a configured rule the default policy applies: CRITICAL
nonconformances may not be dispositioned as USE_AS_IS.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			decision, err := a.gate.ValidateNCRDisposition(ctx, args[0], quality.Disposition(args[1]))
			if err != nil {
				return err
			}

			return printResult(decision)
		},
	}
}
