package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/hexagram/internal/engine"
	"github.com/roach88/hexagram/internal/gateway"
	"github.com/roach88/hexagram/internal/notify"
	"github.com/roach88/hexagram/internal/profile"
	"github.com/roach88/hexagram/internal/session"
	"github.com/roach88/hexagram/internal/storage"
)

// app is everything a client command needs: the two storage tiers, the
// profile and session stores, the gateway and the active variant.
type app struct {
	opts     *RootOptions
	profiles *profile.Store
	sessions *session.Store
	client   *gateway.Client
	variant  *profile.Variant
	notifier notify.Notifier

	closers []func() error
}

// openApp wires the client from the global flags. Notifications are
// printed to notes; when NATS is configured they are also published.
func openApp(ctx context.Context, opts *RootOptions, notes io.Writer) (*app, error) {
	a := &app{opts: opts}

	variant, err := resolveVariant(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load variant", err)
	}
	a.variant = variant

	durable, err := a.openDurable(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var profileOpts []profile.Option
	if opts.Suffixes != nil {
		profileOpts = append(profileOpts, profile.WithSuffixGenerator(opts.Suffixes))
	}
	a.profiles, err = profile.Open(ctx, durable, profileOpts...)
	if err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open profile", err)
	}
	a.sessions = session.NewStore(durable, storage.NewMemory())
	a.client = gateway.NewClient(opts.BaseURL, nil)

	a.notifier, err = a.openNotifier(notes)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openDurable picks Redis when configured, otherwise the SQLite file.
func (a *app) openDurable(ctx context.Context) (storage.Storage, error) {
	cfg := a.opts.Config
	if cfg.Redis.Addr != "" {
		slog.Debug("opening redis tier", "addr", cfg.Redis.Addr)
		rdb, err := storage.NewRedis(storage.RedisOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
		})
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to configure redis", err)
		}
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx); err != nil {
			return nil, WrapExitError(ExitCommandError, "redis unreachable", err)
		}
		return rdb, nil
	}

	slog.Debug("opening database", "path", a.opts.Database)
	db, err := storage.OpenSQLite(a.opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *app) openNotifier(notes io.Writer) (notify.Notifier, error) {
	sinks := notify.Multi{notify.NewWriter(notes)}

	cfg := a.opts.Config.NATS
	if cfg.URL == "" {
		return sinks, nil
	}
	conn, err := notify.DialNATS(cfg.URL)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to connect to NATS", err)
	}
	a.closers = append(a.closers, func() error {
		return conn.Drain()
	})
	pub, err := notify.NewNATSPublisher(conn, cfg.Subject)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure NATS publisher", err)
	}
	return append(sinks, pub), nil
}

// Close releases storage and broker connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("error closing resource", "error", err)
		}
	}
	a.closers = nil
}

// startEngine runs a sync engine until the returned stop function is
// called. stop waits for the loop to exit.
func (a *app) startEngine(ctx context.Context, extra ...engine.Option) (*engine.Engine, func()) {
	cfg := a.opts.Config
	opts := []engine.Option{
		engine.WithNotifier(a.notifier),
		engine.WithAutoSyncDelay(cfg.SyncDelay),
	}
	if cfg.AutoSync != nil {
		opts = append(opts, engine.WithAutoSync(*cfg.AutoSync))
	}
	opts = append(opts, extra...)

	eng := engine.New(a.profiles, a.sessions, a.client, a.variant, opts...)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := eng.Run(ctx); err != nil && err != context.Canceled {
			slog.Error("sync engine error", "error", err)
		}
	}()
	return eng, func() {
		eng.Stop()
		<-done
	}
}

// resolveVariant returns the schema file's variant when one is given,
// otherwise the named built-in.
func resolveVariant(opts *RootOptions) (*profile.Variant, error) {
	if opts.SchemaFile != "" {
		return profile.LoadVariantFile(opts.SchemaFile)
	}
	builtins := profile.BuiltinVariants()
	if v, ok := builtins[opts.Variant]; ok {
		return v, nil
	}
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown variant %q: must be one of %v", opts.Variant, names)
}
