package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hexagram/internal/engine"
	"github.com/roach88/hexagram/internal/profile"
)

// ProfileResult is the JSON output of the profile subcommands.
type ProfileResult struct {
	ProfileView
	Outcome string `json:"outcome,omitempty"`
}

// NewProfileCommand creates the profile command and its subcommands.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit the local profile",
		Long: `Show and edit the profile.

Edits are validated and committed locally first. When signed in they are
then pushed to the profile service; a failed push leaves the local edit
in place.

Examples:
  hexagram profile show
  hexagram profile set displayName="Ada L" region=Japan
  hexagram profile pull
  hexagram profile upgrade paidLevel`,
	}

	cmd.AddCommand(newProfileShowCommand(rootOpts))
	cmd.AddCommand(newProfileSetCommand(rootOpts))
	cmd.AddCommand(newProfilePullCommand(rootOpts))
	cmd.AddCommand(newProfileUpgradeCommand(rootOpts))
	cmd.AddCommand(newProfileResetCommand(rootOpts))
	return cmd
}

// profileCommand builds a profile subcommand that runs fn against an
// opened app.
func profileCommand(rootOpts *RootOptions, use, short string, args cobra.PositionalArgs,
	fn func(ctx context.Context, a *app, f *OutputFormatter, args []string) error,
) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          args,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			a, err := openApp(ctx, rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return formatter.Fail(CodeConfig, err)
			}
			defer a.Close()
			return fn(ctx, a, formatter, args)
		},
	}
}

func newProfileShowCommand(rootOpts *RootOptions) *cobra.Command {
	return profileCommand(rootOpts, "show", "Print the local profile", cobra.NoArgs,
		func(ctx context.Context, a *app, f *OutputFormatter, _ []string) error {
			return outputProfile(ctx, a, f, "")
		})
}

func newProfileSetCommand(rootOpts *RootOptions) *cobra.Command {
	return profileCommand(rootOpts, "set <field=value>...", "Edit fields and save", cobra.MinimumNArgs(1),
		func(ctx context.Context, a *app, f *OutputFormatter, args []string) error {
			draft := a.profiles.Read()
			if err := applyAssignments(a.variant, &draft, args); err != nil {
				_ = f.Error(CodeUsage, err.Error(), nil)
				return WrapExitError(ExitCommandError, "invalid field assignment", err)
			}

			eng, stop := a.startEngine(ctx, engine.WithAutoSync(false))
			defer stop()
			o, err := engine.Await(ctx, eng.Save(draft))
			if err != nil {
				return err
			}
			if err := f.Outcome(o); err != nil {
				return err
			}
			return outputProfile(ctx, a, f, string(o.Kind))
		})
}

func newProfilePullCommand(rootOpts *RootOptions) *cobra.Command {
	return profileCommand(rootOpts, "pull", "Load the remote profile over the local one", cobra.NoArgs,
		func(ctx context.Context, a *app, f *OutputFormatter, _ []string) error {
			eng, stop := a.startEngine(ctx, engine.WithAutoSync(false))
			defer stop()
			o, err := engine.Await(ctx, eng.Load())
			if err != nil {
				return err
			}
			if o.NoSession {
				f.VerboseLog("not signed in; nothing to pull")
				return outputProfile(ctx, a, f, "no_session")
			}
			if err := f.Outcome(o); err != nil {
				return err
			}
			return outputProfile(ctx, a, f, "loaded")
		})
}

func newProfileUpgradeCommand(rootOpts *RootOptions) *cobra.Command {
	return profileCommand(rootOpts, "upgrade <field>", "Move a level field one tier up", cobra.ExactArgs(1),
		func(ctx context.Context, a *app, f *OutputFormatter, args []string) error {
			before, _ := a.profiles.Read().Get(args[0])

			eng, stop := a.startEngine(ctx, engine.WithAutoSync(false))
			defer stop()
			o, err := engine.Await(ctx, eng.Upgrade(args[0]))
			if err != nil {
				return err
			}
			if o.Err != nil {
				_ = f.Error(CodeUsage, o.Err.Error(), nil)
				return WrapExitError(ExitCommandError, "upgrade failed", o.Err)
			}

			after, _ := o.Profile.Get(args[0])
			if after == before {
				f.VerboseLog("%s already at the top tier", args[0])
			}
			return outputProfile(ctx, a, f, "upgraded")
		})
}

func newProfileResetCommand(rootOpts *RootOptions) *cobra.Command {
	return profileCommand(rootOpts, "reset", "Replace the local profile with defaults", cobra.NoArgs,
		func(ctx context.Context, a *app, f *OutputFormatter, _ []string) error {
			if err := a.profiles.Reset(ctx); err != nil {
				_ = f.Error(CodeConfig, err.Error(), nil)
				return WrapExitError(ExitCommandError, "reset failed", err)
			}
			return outputProfile(ctx, a, f, "reset")
		})
}

func outputProfile(ctx context.Context, a *app, f *OutputFormatter, outcome string) error {
	_, signedIn := a.sessions.Get(ctx)
	view := ProfileView{Variant: a.variant.Name, SignedIn: signedIn, Profile: a.profiles.Read()}
	if f.Format == "json" {
		return f.Success(ProfileResult{ProfileView: view, Outcome: outcome})
	}
	renderProfile(f.Writer, a.variant, view.Profile)
	return nil
}

// applyAssignments parses key=value arguments into draft. Only fields of
// the variant may be set.
func applyAssignments(v *profile.Variant, draft *profile.UserProfile, args []string) error {
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected field=value, got %q", arg)
		}
		key = strings.TrimSpace(key)
		if _, ok := v.Field(key); !ok {
			if profile.IsField(key) {
				return fmt.Errorf("field %q is not part of variant %s", key, v.Name)
			}
			return fmt.Errorf("unknown profile field %q", key)
		}
		if err := draft.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}
