package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xraph/forge"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/api"
	"github.com/xraph/beacon/store"
)

// ErrNotInitialized is returned by lifecycle methods called before Init.
var ErrNotInitialized = errors.New("beacon extension: not initialized")

// Extension mounts Beacon into a host application.
type Extension struct {
	config Config
	store  store.Store
	opts   []beacon.Option
	logger *slog.Logger

	beacon *beacon.Beacon
}

// New creates a Beacon extension.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Name identifies the extension.
func (e *Extension) Name() string { return "beacon" }

// Init migrates the store and builds the engine.
func (e *Extension) Init(ctx context.Context) error {
	if e.store == nil {
		return beacon.ErrNoStore
	}

	if !e.config.DisableMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("beacon extension: %w", err)
		}
	}

	opts := append(e.config.ToBeaconOptions(),
		beacon.WithStore(e.store),
		beacon.WithLogger(e.logger),
	)
	opts = append(opts, e.opts...)

	b, err := beacon.New(opts...)
	if err != nil {
		return fmt.Errorf("beacon extension: %w", err)
	}
	e.beacon = b

	e.logger.InfoContext(ctx, "beacon extension initialized",
		"base_path", e.config.BasePath,
		"migrate", !e.config.DisableMigrate,
	)
	return nil
}

// Start begins background processing.
func (e *Extension) Start(ctx context.Context) error {
	if e.beacon == nil {
		return ErrNotInitialized
	}
	return e.beacon.Start(ctx)
}

// Stop shuts the engine down and closes the store.
func (e *Extension) Stop(ctx context.Context) error {
	if e.beacon == nil {
		return nil
	}
	stopErr := e.beacon.Stop(ctx)
	closeErr := e.store.Close()
	return errors.Join(stopErr, closeErr)
}

// Health pings the store.
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return beacon.ErrNoStore
	}
	return e.store.Ping(ctx)
}

// Beacon returns the engine, or nil before Init.
func (e *Extension) Beacon() *beacon.Beacon { return e.beacon }

// Config returns the extension configuration.
func (e *Extension) Config() Config { return e.config }

// RegisterRoutes mounts the admin API on a Forge router under BasePath.
// It does nothing when routes are disabled.
func (e *Extension) RegisterRoutes(router forge.Router, log forge.Logger) {
	if e.config.DisableRoutes || e.beacon == nil {
		return
	}
	g := router.Group(e.basePath())
	api.NewForgeAPI(e.beacon, log).RegisterRoutes(g)
}

// Handler returns the admin API as a plain http.Handler expecting requests
// under BasePath. It is nil before Init.
func (e *Extension) Handler() http.Handler {
	if e.beacon == nil {
		return nil
	}
	return http.StripPrefix(e.basePath(), api.NewHandler(e.beacon, e.logger))
}

func (e *Extension) basePath() string {
	return strings.TrimRight(e.config.BasePath, "/")
}
