package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hexagram/internal/engine"
	"github.com/roach88/hexagram/internal/gateway"
	"github.com/roach88/hexagram/internal/profile"
)

const shellHelp = `Commands:
  show                      print the draft and the stored profile state
  set <field> <value>       edit a field (auto-sync pushes it when enabled)
  save                      validate, store and push the draft
  pull                      load the remote profile
  upgrade <field>           move a level one tier up
  autosync on|off           switch debounced auto-sync
  state                     print the sync state
  wait                      block until the engine is idle
  login <email> <password>  sign in for this session
  logout                    sign out
  help                      this text
  quit                      leave the shell`

// NewShellCommand creates the interactive shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Edit the profile interactively",
		Long: `Open an editing session backed by a running sync engine.

The remote profile is loaded on start when signed in. With auto-sync on,
edits are pushed once no further edit arrives within the sync delay.
Edits that were neither saved nor auto-synced are discarded on exit.`,
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

			eng, stop := a.startEngine(ctx, engine.WithLoadOnMount())
			defer stop()

			sh := &shell{
				app:    a,
				engine: eng,
				out:    cmd.OutOrStdout(),
				draft:  a.variant.Normalize(a.profiles.Read()),
				delay:  rootOpts.Config.SyncDelay,
			}
			return sh.run(ctx, cmd.InOrStdin())
		},
	}
}

// shell holds the form draft between commands.
type shell struct {
	app    *app
	engine *engine.Engine
	out    io.Writer
	draft  profile.UserProfile
	delay  time.Duration
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	if err := s.engine.Settle(ctx); err != nil {
		return err
	}
	s.draft = s.app.variant.Normalize(s.app.profiles.Read())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "hexagram> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if err := s.exec(ctx, line); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
	fmt.Fprintln(s.out)
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitCommandError, "reading input", err)
	}

	if err := s.engine.Settle(ctx); err != nil {
		return err
	}
	// The draft holds values as typed; the store holds them normalized.
	v := s.app.variant
	if v.Changed(v.Normalize(s.draft), v.Normalize(s.app.profiles.Read())) {
		fmt.Fprintln(s.out, "Unsaved edits discarded.")
	}
	return nil
}

func (s *shell) exec(ctx context.Context, line string) error {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "help":
		fmt.Fprintln(s.out, shellHelp)
		return nil

	case "show":
		renderProfile(s.out, s.app.variant, s.draft)
		return nil

	case "set":
		key, value, _ := strings.Cut(rest, " ")
		if key == "" {
			return fmt.Errorf("usage: set <field> <value>")
		}
		if err := applyAssignments(s.app.variant, &s.draft, []string{key + "=" + value}); err != nil {
			return err
		}
		_, err := engine.Await(ctx, s.engine.Edit(s.draft))
		return err

	case "save":
		o, err := engine.Await(ctx, s.engine.Save(s.draft))
		if err != nil {
			return err
		}
		if o.Err == nil {
			s.draft = s.app.variant.Normalize(o.Profile)
		}
		return nil

	case "pull":
		o, err := engine.Await(ctx, s.engine.Load())
		if err != nil {
			return err
		}
		if o.NoSession {
			fmt.Fprintln(s.out, "Not signed in.")
			return nil
		}
		if o.Err == nil && !o.Canceled {
			s.draft = s.app.variant.Normalize(o.Profile)
		}
		return nil

	case "upgrade":
		o, err := engine.Await(ctx, s.engine.Upgrade(rest))
		if err != nil {
			return err
		}
		if o.Err != nil {
			return o.Err
		}
		value, _ := o.Profile.Get(rest)
		_ = s.draft.Set(rest, value)
		fmt.Fprintf(s.out, "%s: %s\n", rest, value)
		return nil

	case "autosync":
		var on bool
		switch rest {
		case "on":
			on = true
		case "off":
		default:
			return fmt.Errorf("usage: autosync on|off")
		}
		_, err := engine.Await(ctx, s.engine.SetAutoSync(on))
		return err

	case "state":
		st, err := s.engine.State(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, st)
		return nil

	case "wait":
		return s.wait(ctx)

	case "login":
		email, password, _ := strings.Cut(rest, " ")
		sess, err := s.app.client.Login(ctx, gateway.Credentials{Email: email, Password: strings.TrimSpace(password)})
		if err != nil {
			return err
		}
		if err := s.app.sessions.Persist(ctx, sess, false); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Signed in as %s\n", sess.Email)
		return s.exec(ctx, "pull")

	case "logout":
		_, err := engine.Await(ctx, s.engine.Logout())
		return err
	}
	return fmt.Errorf("unknown command %q (try help)", verb)
}

// wait polls until the engine is idle. In-flight requests are awaited
// with Settle; an edit made during a push re-arms auto-sync afterwards.
func (s *shell) wait(ctx context.Context) error {
	poll := s.delay / 4
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	deadline := time.Now().Add(2*(s.delay+engine.DefaultAutoSyncDelay) + gateway.DefaultTimeout)
	for time.Now().Before(deadline) {
		st, err := s.engine.State(ctx)
		if err != nil {
			return err
		}
		switch st {
		case engine.StateIdle:
			return nil
		case engine.StateAutoSyncPending:
			select {
			case <-time.After(poll):
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			if err := s.engine.Settle(ctx); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("auto-sync still pending")
}
