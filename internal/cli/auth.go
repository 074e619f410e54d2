package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hexagram/internal/engine"
	"github.com/roach88/hexagram/internal/gateway"
	"github.com/roach88/hexagram/internal/notify"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
	Remember bool
}

// LoginResult is the JSON output of login.
type LoginResult struct {
	Session SessionView `json:"session"`
	Loaded  bool        `json:"loaded"`
	Profile ProfileView `json:"profile"`
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and load the remote profile",
		Long: `Sign in with email and password, store the session and load the
remote profile over the local one.

With --remember=false the session is kept in memory only and ends when
the command exits; use it from the shell command for a one-off session.

Example:
  hexagram login --email ada@example.com --password hunter22`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password (required)")
	cmd.Flags().BoolVar(&opts.Remember, "remember", true, "keep the session across runs")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runLogin(ctx context.Context, opts *LoginOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	a, err := openApp(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return formatter.Fail(CodeConfig, err)
	}
	defer a.Close()

	creds := gateway.Credentials{Email: opts.Email, Password: opts.Password, Remember: opts.Remember}
	sess, err := a.client.Login(ctx, creds)
	if err != nil {
		return authFailure(formatter, "login failed", err)
	}
	if err := a.sessions.Persist(ctx, sess, opts.Remember); err != nil {
		return formatter.Fail(CodeConfig, WrapExitError(ExitCommandError, "failed to store session", err))
	}
	formatter.VerboseLog("session stored (remember=%t)", opts.Remember)

	eng, stop := a.startEngine(ctx, engine.WithAutoSync(false))
	defer stop()
	o, err := engine.Await(ctx, eng.Load())
	if err != nil {
		return err
	}

	result := LoginResult{
		Session: newSessionView(sess),
		Loaded:  o.Kind != notify.KindLoadFailed && !o.Canceled,
		Profile: ProfileView{Variant: a.variant.Name, SignedIn: true, Profile: a.profiles.Read()},
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "Signed in as %s\n", sess.Email)
	if !opts.Remember {
		fmt.Fprintln(formatter.Writer, "Session not remembered; it ends when this command exits.")
	}
	fmt.Fprintln(formatter.Writer)
	renderProfile(formatter.Writer, a.variant, result.Profile.Profile)
	return nil
}

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Email    string
	Password string
	Confirm  string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "register",
		Short:         "Create an account",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

			client := gateway.NewClient(opts.BaseURL, nil)
			reg := gateway.Registration{Email: opts.Email, Password: opts.Password, ConfirmPassword: opts.Confirm}
			if err := client.Register(ctx, reg); err != nil {
				return authFailure(formatter, "registration failed", err)
			}
			if formatter.Format == "json" {
				return formatter.Success(map[string]string{"email": opts.Email})
			}
			fmt.Fprintf(formatter.Writer, "Registered %s. Sign in with: hexagram login --email %s\n", opts.Email, opts.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password (required)")
	cmd.Flags().StringVar(&opts.Confirm, "confirm", "", "repeat the password (required)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Forget the stored session; the local profile is kept",
		Args:          cobra.NoArgs,
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

			eng, stop := a.startEngine(ctx)
			defer stop()
			if _, err := engine.Await(ctx, eng.Logout()); err != nil {
				return err
			}
			return formatter.Success(map[string]bool{"signedIn": false})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "whoami",
		Short:         "Show the signed-in account",
		Args:          cobra.NoArgs,
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

			sess, ok := a.sessions.Get(ctx)
			if formatter.Format == "json" {
				if !ok {
					return formatter.Success(map[string]bool{"signedIn": false})
				}
				return formatter.Success(newSessionView(sess))
			}
			if !ok {
				fmt.Fprintln(formatter.Writer, "Not signed in")
				return nil
			}
			fmt.Fprintf(formatter.Writer, "%s", sess.Email)
			if sess.Plan != "" {
				fmt.Fprintf(formatter.Writer, " (%s)", sess.Plan)
			}
			fmt.Fprintln(formatter.Writer)
			return nil
		},
	}
}

// authFailure reports a rejected login or registration. Local form errors
// are usage errors; anything the server said is a failure.
func authFailure(formatter *OutputFormatter, message string, err error) error {
	code := ExitFailure
	if errors.Is(err, gateway.ErrInvalidCredentials) {
		code = ExitCommandError
	}
	var statusErr *gateway.StatusError
	detail := err.Error()
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		detail = statusErr.Message
	}
	_ = formatter.Error(CodeAuth, detail, nil)
	return WrapExitError(code, message, err)
}
