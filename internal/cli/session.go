package cli

import (
	"context"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/remote"
	"github.com/roach88/boltview/internal/service"
	"github.com/roach88/boltview/internal/store"
)

// session is the part of the service contract the one-shot commands use.
// It is served locally by service.Service or remotely by remote.Client.
type session interface {
	ListDatabases(ctx context.Context) ([]string, error)
	Get(ctx context.Context, db string, key []byte) ([]byte, bool, error)
	Put(ctx context.Context, db string, key, value []byte) error
	Delete(ctx context.Context, db string, key []byte) error
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
	Stats(ctx context.Context, db string) (store.DBStats, error)
}

var (
	_ session = (*service.Service)(nil)
	_ session = (*remote.Client)(nil)
)

// manager builds a store manager from the loaded configuration.
func (o *RootOptions) manager() *store.Manager {
	cfg := o.Config
	opts := []store.Option{
		store.WithMapSize(cfg.MapSize()),
		store.WithOpenTimeout(cfg.OpenTimeout),
		store.WithCloseTimeout(cfg.CloseTimeout),
		store.WithLogger(o.Logger),
	}
	if o.Tokens != nil {
		opts = append(opts, store.WithTokenGenerator(o.Tokens))
	}
	return store.NewManager(opts...)
}

// mode returns the open mode for a command that does or does not write.
func (o *RootOptions) mode(writes bool) store.OpenMode {
	switch {
	case o.Config.ReadOnly || !writes:
		return store.ModeReadOnly
	case o.Config.Create:
		return store.ModeCreate
	default:
		return store.ModeReadWrite
	}
}

// openService opens the configured store and returns its service. The
// returned func closes the store.
func (o *RootOptions) openService(writes bool) (*service.Service, func(), error) {
	if o.Config.Path == "" {
		return nil, nil, NewExitError(ExitFailure, "no store path: use --path or set path in boltview.yaml")
	}
	mgr := o.manager()
	env, err := mgr.Open(o.Config.Path, o.mode(writes))
	if err != nil {
		return nil, nil, fail("failed to open store", err)
	}
	o.Logger.Debug("opened store", "path", env.Path(), "mode", env.Mode().String())

	closeFn := func() {
		if err := mgr.CloseAll(); err != nil {
			o.Logger.Error("error closing store", "error", err)
		}
	}
	return service.New(env, service.WithLogger(o.Logger)), closeFn, nil
}

// openSession returns a remote session when --remote is set, else a local one.
func (o *RootOptions) openSession(writes bool) (session, func(), error) {
	if o.Config.Remote != "" {
		o.Logger.Debug("using remote session", "url", o.Config.Remote)
		return remote.NewClient(o.Config.Remote, nil), func() {}, nil
	}
	return o.openService(writes)
}

// requireLocal rejects --remote for commands that need the store file.
func (o *RootOptions) requireLocal(command string) error {
	if o.Config.Remote != "" {
		return fail(command+" needs a local store",
			apperr.Newf(apperr.CodeInvalidArgument, command, "--remote is not supported by %s", command))
	}
	return nil
}
