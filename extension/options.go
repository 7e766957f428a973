package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/custody"
	"github.com/xraph/custody/api"
	"github.com/xraph/custody/plugin"
	"github.com/xraph/custody/store"
	"github.com/xraph/custody/token"
)

// Option configures the Custody Forge extension.
type Option func(*Extension)

// WithStore sets the store for the controller. It takes precedence over
// WithGroveDB.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store from db. Config.Driver selects the backend.
func WithGroveDB(db *grove.DB, driver string) Option {
	return func(e *Extension) {
		e.groveDB = db
		e.config.Driver = driver
	}
}

// WithToken sets the stable token the controller holds. Defaults to a
// process-local token in which the controller principal may mint.
func WithToken(t token.Token) Option {
	return func(e *Extension) {
		e.token = t
	}
}

// WithControllerOption passes a custody.Option through to the controller.
func WithControllerOption(opt custody.Option) Option {
	return func(e *Extension) {
		e.controllerOpts = append(e.controllerOpts, opt)
	}
}

// WithAPIOption passes an api.Option through to the HTTP server.
func WithAPIOption(opt api.Option) Option {
	return func(e *Extension) {
		e.apiOpts = append(e.apiOpts, opt)
	}
}

// WithPlugin registers a custody plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.controllerOpts = append(e.controllerOpts, custody.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents the HTTP API from being built.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate skips store migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix of the API handler.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithPrincipal sets the address custody is held under.
func WithPrincipal(p string) Option {
	return func(e *Extension) { e.config.Principal = p }
}

// WithRateLimit limits API requests per principal.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Extension) {
		e.config.RateLimit = rps
		e.config.RateBurst = burst
	}
}

// WithPluginTimeout bounds every plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
