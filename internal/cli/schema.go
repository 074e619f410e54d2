package cli

import (
	"github.com/spf13/cobra"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the active form variant",
		Long: `Print the fields, domains and rules of the active variant.

The variant is --variant (a built-in) or the definition in --schema-file.

Example:
  hexagram schema --variant matching
  hexagram schema --schema-file ./variants/onboarding.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			v, err := resolveVariant(rootOpts)
			if err != nil {
				_ = formatter.Error(CodeConfig, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to load variant", err)
			}
			if formatter.Format == "json" {
				return formatter.Success(v)
			}
			renderVariant(formatter.Writer, v)
			return nil
		},
	}
}
