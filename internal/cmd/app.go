package cmd

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sciencepoint/internal/auth"
	"github.com/felixgeelhaar/sciencepoint/internal/authsignal"
	"github.com/felixgeelhaar/sciencepoint/internal/config"
	"github.com/felixgeelhaar/sciencepoint/internal/errors"
	"github.com/felixgeelhaar/sciencepoint/internal/log"
	"github.com/felixgeelhaar/sciencepoint/internal/metrics"
	"github.com/felixgeelhaar/sciencepoint/internal/monitor"
	"github.com/felixgeelhaar/sciencepoint/internal/platform"
	"github.com/felixgeelhaar/sciencepoint/internal/session"
	"github.com/felixgeelhaar/sciencepoint/internal/storage"
	"github.com/felixgeelhaar/sciencepoint/internal/ux"
)

// app is one invocation's object graph.
type app struct {
	cctx       *CommandContext
	cfg        *config.Config
	logger     *log.Logger
	store      *session.Store
	bus        *authsignal.Bus
	client     *platform.Client
	controller *auth.Controller
	registry   *prometheus.Registry
	closers    []func() error
}

type appOptions struct {
	notifier auth.Notifier
	surface  auth.WarningSurface
	observer func(auth.SessionState)
	// exported registries also carry the Go and process collectors
	exportMetrics bool
}

// newApp wires configuration, storage, the API client and the controller.
// Call Close when done.
func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := cctx.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cmd, cfg)

	a := &app{cctx: cctx, cfg: cfg, logger: logger}

	backend, closer, err := openStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	var m *metrics.Metrics
	if opts.exportMetrics {
		a.registry, m = metrics.NewProcessRegistry()
	} else {
		a.registry, m = metrics.NewRegistry()
	}

	a.store = session.NewStore(backend, logger)
	a.bus = authsignal.NewBus()
	a.client = platform.NewClient(cfg.API.BaseURL,
		platform.WithTimeout(cfg.API.Timeout),
		platform.WithTokenSource(platform.TokenFunc(func() string { return a.controller.Token() })),
		platform.WithPublisher(a.bus),
		platform.WithLogger(logger),
	)

	notifier := opts.notifier
	if notifier == nil {
		notifier = withoutErrors(ux.NewNoticeWriter(cmd.ErrOrStderr(), cctx.NoColor))
	}

	controllerOpts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithMetrics(m),
		auth.WithNotifier(notifier),
		auth.WithVerifyOnRestore(cfg.Session.VerifyOnRestore),
		auth.WithMonitorOptions(
			monitor.WithInterval(cfg.Session.PollInterval),
			monitor.WithThreshold(cfg.Session.WarningThreshold),
		),
	}
	if opts.surface != nil {
		controllerOpts = append(controllerOpts, auth.WithWarningSurface(opts.surface))
	}
	if opts.observer != nil {
		controllerOpts = append(controllerOpts, auth.WithStateObserver(opts.observer))
	}

	a.controller = auth.NewController(auth.Deps{
		Backend: a.client,
		Store:   a.store,
		Bus:     a.bus,
	}, controllerOpts...)

	return a, nil
}

// openStorage opens the configured session storage. The returned closer
// may be nil.
func openStorage(cfg *config.Config, logger *log.Logger) (storage.Storage, func() error, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), nil, nil

	case config.BackendRedis:
		rc := cfg.Storage.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		r := storage.NewRedis(client, storage.WithPrefix(rc.Prefix), storage.WithTimeout(cfg.API.Timeout))
		ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
		defer cancel()
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, nil, errors.Wrap(errors.ErrCodeStoreBackend, "cannot reach the Redis session store", err).
				WithSuggestion("Check storage.redis.addr or switch back with: sciencepoint config set storage.backend file")
		}
		logger.Debug("using redis session store", "addr", rc.Addr, "prefix", rc.Prefix)
		return r, r.Close, nil

	default:
		path, err := cfg.SessionPath()
		if err != nil {
			return nil, nil, err
		}
		f := storage.NewFile(path, cfg.Storage.Passphrase)
		logger.Debug("using file session store", "path", f.Path(), "encrypted", f.Encrypted())
		return f, nil, nil
	}
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *log.Logger {
	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	logger := log.New(lc)
	log.SetDefaultLogger(logger)
	return logger
}

// restore loads the saved session, if any.
func (a *app) restore(ctx context.Context) auth.SessionState {
	return a.controller.RestoreOnStartup(ctx)
}

// requireSession restores and fails when nobody is logged in.
func (a *app) requireSession(ctx context.Context) (auth.SessionState, error) {
	state := a.restore(ctx)
	if !state.IsAuthenticated {
		return state, errors.NewNotAuthenticatedError()
	}
	return state, nil
}

// Close stops the controller and releases storage.
func (a *app) Close() {
	a.controller.Close()
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.WithError(err).Debug("close failed")
		}
	}
}

// withoutErrors drops error notices. Commands return those errors and main
// renders them once.
func withoutErrors(n auth.Notifier) auth.Notifier {
	return auth.NotifierFunc(func(notice auth.Notice) {
		if notice.Level != auth.LevelError {
			n.Notify(notice)
		}
	})
}
