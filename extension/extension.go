// Package extension provides the Forge extension adapter for Custody.
//
// It implements the forge.Extension interface to integrate the custody
// controller into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.custody" or "custody" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/custody"
	"github.com/xraph/custody/api"
	"github.com/xraph/custody/rbac"
	"github.com/xraph/custody/store"
	"github.com/xraph/custody/store/memory"
	"github.com/xraph/custody/store/mongo"
	"github.com/xraph/custody/store/postgres"
	"github.com/xraph/custody/store/sqlite"
	"github.com/xraph/custody/token"
	"github.com/xraph/custody/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "custody"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Custodial stable-token ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = custody.Version

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the custody controller as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config         Config
	controller     *custody.Controller
	server         *api.Server
	store          store.Store
	token          token.Token
	groveDB        *grove.DB
	controllerOpts []custody.Option
	apiOpts        []api.Option
	cancel         context.CancelFunc
}

// New creates a new Custody Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Controller returns the underlying controller.
// This is nil until Register is called.
func (e *Extension) Controller() *custody.Controller { return e.controller }

// Handler returns the HTTP API mounted under Config.BasePath, or nil when
// routes are disabled or Register has not run.
func (e *Extension) Handler() http.Handler {
	if e.server == nil {
		return nil
	}
	return http.StripPrefix(strings.TrimSuffix(e.config.BasePath, "/"), e.server.Handler())
}

// Register implements [forge.Extension]. It loads configuration, builds the
// controller and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*custody.Controller, error) {
		return e.controller, nil
	}); err != nil {
		return err
	}
	if e.server == nil {
		return nil
	}
	return vessel.Provide(fapp.Container(), func() (*api.Server, error) {
		return e.server, nil
	})
}

// build creates the store, the controller and the API server from the
// resolved config.
func (e *Extension) build() error {
	s, err := e.resolveStore()
	if err != nil {
		return err
	}
	e.store = s

	self := types.Principal(e.config.Principal)
	if e.token == nil {
		e.token = token.NewMemory(self)
	}

	c, err := custody.New(self, e.token, e.store, e.buildControllerOpts()...)
	if err != nil {
		return fmt.Errorf("custody: build controller: %w", err)
	}
	e.controller = c

	if !e.config.DisableRoutes {
		opts := append([]api.Option{api.WithRateLimit(e.config.RateLimit, e.config.RateBurst)}, e.apiOpts...)
		e.server = api.New(c, opts...)
	}
	return nil
}

// resolveStore picks the programmatic store, then a grove-backed store for
// the configured driver, then the memory store.
func (e *Extension) resolveStore() (store.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	if e.groveDB == nil {
		if e.config.Driver != "" && e.config.Driver != DriverMemory {
			return nil, fmt.Errorf("custody: driver %q requires a grove database", e.config.Driver)
		}
		return memory.New(), nil
	}
	switch e.config.Driver {
	case DriverPostgres:
		return postgres.New(e.groveDB), nil
	case DriverSQLite:
		return sqlite.New(e.groveDB), nil
	case DriverMongo:
		return mongo.New(e.groveDB), nil
	default:
		return nil, fmt.Errorf("custody: unsupported driver %q", e.config.Driver)
	}
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.controller == nil {
		return errors.New("custody: extension not initialized")
	}

	if err := e.controller.Start(ctx); err != nil {
		return err
	}
	if e.server != nil {
		bg, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		e.server.Start(bg)
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.controller != nil {
		if err := e.controller.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("custody: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildControllerOpts constructs custody.Option values from the resolved config.
func (e *Extension) buildControllerOpts() []custody.Option {
	opts := make([]custody.Option, 0, len(e.controllerOpts)+8)

	if e.config.Owner != "" {
		opts = append(opts, custody.WithOwner(types.Principal(e.config.Owner)))
	}
	if e.config.Custodian != "" {
		opts = append(opts, custody.WithCustodian(types.Principal(e.config.Custodian)))
	}
	if len(e.config.Operators) > 0 {
		opts = append(opts, custody.WithRole(rbac.Operator, principals(e.config.Operators)...))
	}
	if len(e.config.Pausers) > 0 {
		opts = append(opts, custody.WithRole(rbac.Pauser, principals(e.config.Pausers)...))
	}
	if e.config.Demurrage != nil {
		opts = append(opts, custody.WithDemurrage(*e.config.Demurrage))
	}
	if e.config.Fee != nil {
		opts = append(opts, custody.WithRedemptionFee(*e.config.Fee))
	}
	if e.config.PluginTimeout > 0 {
		opts = append(opts, custody.WithPluginTimeout(e.config.PluginTimeout))
	}
	if e.config.DisableMigrate {
		opts = append(opts, custody.WithoutMigrate())
	}

	// Pass-through options win over config.
	opts = append(opts, e.controllerOpts...)

	return opts
}

func principals(in []string) []types.Principal {
	out := make([]types.Principal, 0, len(in))
	for _, p := range in {
		out = append(out, types.Principal(p))
	}
	return out
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("custody: configuration is required but not found in config files; " +
				"ensure 'extensions.custody' or 'custody' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("custody: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("principal", e.config.Principal),
		forge.F("driver", e.config.Driver),
		forge.F("rate_limit", e.config.RateLimit),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.custody", "custody"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("custody: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("custody: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.Principal == "" {
		cfg.Principal = defaults.Principal
	}
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaults.RateBurst
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	fill(&yamlConfig.BasePath, programmaticConfig.BasePath)
	fill(&yamlConfig.Principal, programmaticConfig.Principal)
	fill(&yamlConfig.Owner, programmaticConfig.Owner)
	fill(&yamlConfig.Custodian, programmaticConfig.Custodian)
	fill(&yamlConfig.Driver, programmaticConfig.Driver)

	if len(yamlConfig.Operators) == 0 {
		yamlConfig.Operators = programmaticConfig.Operators
	}
	if len(yamlConfig.Pausers) == 0 {
		yamlConfig.Pausers = programmaticConfig.Pausers
	}
	if yamlConfig.Demurrage == nil {
		yamlConfig.Demurrage = programmaticConfig.Demurrage
	}
	if yamlConfig.Fee == nil {
		yamlConfig.Fee = programmaticConfig.Fee
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.RateLimit == 0 {
		yamlConfig.RateLimit = programmaticConfig.RateLimit
	}
	if yamlConfig.RateBurst == 0 {
		yamlConfig.RateBurst = programmaticConfig.RateBurst
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
