package extension

import (
	"time"

	"github.com/xraph/custody/demurrage"
	"github.com/xraph/custody/fee"
)

// Store drivers understood by Config.Driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the Custody extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.custody" or "custody" keys).
type Config struct {
	// DisableRoutes prevents the HTTP API from being built.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate skips store migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix the API handler is served under (default: "/custody").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// Principal is the address the controller holds custody under.
	Principal string `json:"principal" mapstructure:"principal" yaml:"principal"`

	// Owner and Custodian seed the genesis commit. Both default to Principal.
	Owner     string `json:"owner" mapstructure:"owner" yaml:"owner"`
	Custodian string `json:"custodian" mapstructure:"custodian" yaml:"custodian"`

	// Operators and Pausers are granted their role at genesis.
	Operators []string `json:"operators" mapstructure:"operators" yaml:"operators"`
	Pausers   []string `json:"pausers" mapstructure:"pausers" yaml:"pausers"`

	// Driver selects the store backend when a grove.DB is supplied
	// (postgres, sqlite or mongo). Without one the memory store is used.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// Demurrage and Fee override the genesis defaults when set.
	Demurrage *demurrage.Params `json:"demurrage,omitempty" mapstructure:"demurrage" yaml:"demurrage,omitempty"`
	Fee       *fee.Schedule     `json:"fee,omitempty" mapstructure:"fee" yaml:"fee,omitempty"`

	// RateLimit is the per-principal request rate of the API (0 disables).
	RateLimit float64 `json:"rate_limit" mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `json:"rate_burst" mapstructure:"rate_burst" yaml:"rate_burst"`

	// PluginTimeout bounds every plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:      "/custody",
		Principal:     "custody",
		Driver:        DriverMemory,
		RateBurst:     20,
		PluginTimeout: 5 * time.Second,
	}
}
