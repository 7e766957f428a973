package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/xraph/custody/demurrage"
	"github.com/xraph/custody/fee"
)

// config is the daemon configuration. The YAML file is read first and flags
// that were set explicitly override it.
type config struct {
	Addr      string   `yaml:"addr"`
	Principal string   `yaml:"principal"`
	Owner     string   `yaml:"owner"`
	Custodian string   `yaml:"custodian"`
	Operators []string `yaml:"operators"`
	Pausers   []string `yaml:"pausers"`

	// Reconcile is a cron expression for the settlement sweep. Empty
	// disables it.
	Reconcile string `yaml:"reconcile"`

	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	PluginTimeout time.Duration `yaml:"plugin_timeout"`

	Demurrage *demurrage.Params `yaml:"demurrage"`
	Fee       *fee.Schedule     `yaml:"fee"`
}

func defaultConfig() config {
	return config{
		Addr:          ":8080",
		Principal:     "custody",
		Reconcile:     "@daily",
		RateBurst:     20,
		PluginTimeout: 5 * time.Second,
	}
}

// loadConfig reads path over the defaults. A missing file is not an error
// unless required is set.
func loadConfig(path string, required bool) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// flags holds the command-line overrides.
type flags struct {
	set *pflag.FlagSet

	config    string
	addr      string
	principal string
	owner     string
	custodian string
	operators []string
	reconcile string
	rateLimit float64
}

func newFlags() *flags {
	f := &flags{set: pflag.NewFlagSet("custodyd", pflag.ContinueOnError)}
	f.set.StringVarP(&f.config, "config", "c", "custodyd.yaml", "path to the YAML config file")
	f.set.StringVar(&f.addr, "addr", "", "HTTP listen address")
	f.set.StringVar(&f.principal, "principal", "", "address custody is held under")
	f.set.StringVar(&f.owner, "owner", "", "genesis owner")
	f.set.StringVar(&f.custodian, "custodian", "", "genesis custodian")
	f.set.StringSliceVar(&f.operators, "operator", nil, "principal granted OPERATOR at genesis (repeatable)")
	f.set.StringVar(&f.reconcile, "reconcile", "", `cron expression for the settlement sweep ("" keeps the config value)`)
	f.set.Float64Var(&f.rateLimit, "rate-limit", 0, "API requests per second per principal")
	f.set.BoolP("help", "h", false, "show help")
	return f
}

// apply copies every flag that was set on the command line into cfg.
func (f *flags) apply(cfg *config) {
	if f.set.Changed("addr") {
		cfg.Addr = f.addr
	}
	if f.set.Changed("principal") {
		cfg.Principal = f.principal
	}
	if f.set.Changed("owner") {
		cfg.Owner = f.owner
	}
	if f.set.Changed("custodian") {
		cfg.Custodian = f.custodian
	}
	if f.set.Changed("operator") {
		cfg.Operators = f.operators
	}
	if f.set.Changed("reconcile") {
		cfg.Reconcile = f.reconcile
	}
	if f.set.Changed("rate-limit") {
		cfg.RateLimit = f.rateLimit
	}
}
