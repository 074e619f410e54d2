package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/hexagram/internal/config"
	"github.com/roach88/hexagram/internal/profile"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string
	BaseURL    string
	Variant    string
	SchemaFile string

	// Config is the environment configuration flags were defaulted from.
	Config config.Config

	// Suffixes overrides the display-name suffix generator (for testing).
	// If nil, defaults to profile.UUIDSuffix.
	Suffixes profile.SuffixGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the hexagram CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Config: config.LoadConfig()})
}

// newRootCommand builds the command tree on opts. Flag defaults come from
// opts.Config.
func newRootCommand(opts *RootOptions) *cobra.Command {
	cfg := opts.Config

	cmd := &cobra.Command{
		Use:   "hexagram",
		Short: "hexagram - profile sync client",
		Long: `Edit a hexagram user profile locally and keep it reconciled with
the remote profile service.

Edits are committed to the local store first and confirmed remotely when
signed in, so the profile stays usable offline.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", cfg.DBPath, "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", cfg.BaseURL, "profile service base URL")
	cmd.PersistentFlags().StringVar(&opts.Variant, "variant", cfg.Variant, "form variant (standard|matching)")
	cmd.PersistentFlags().StringVar(&opts.SchemaFile, "schema-file", cfg.SchemaFile, "variant definition file (.yaml or .cue)")

	// Add subcommands
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewProfileCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewProxyCommand(opts))
	cmd.AddCommand(NewDevServerCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// configureLogging installs the process-wide slog handler. Logs go to
// stderr so they never mix with command output.
func configureLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
