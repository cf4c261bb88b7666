// Package bootcfg loads the boot-time tunables that size the kernel's
// bounded resources (spec.md §6 "Syslimit"-style budgets), grounded on the
// teacher's limits.Syslimit_t defaults but made externally configurable via
// spf13/viper, spf13/pflag, and mitchellh/mapstructure rather than compiled
//-in constants, matching how the rest of the retrieval pack layers runtime
// configuration over fixed kernel defaults.
package bootcfg

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dnrj/nucleus/internal/limits"
)

// Config holds every boot-time tunable (spec.md §3/§6 sizing constants).
// Field names match the flag/env names below via mapstructure tags.
type Config struct {
	MaxVnodes int `mapstructure:"max-vnodes"`
	MaxProcs  int `mapstructure:"max-procs"`
	Nfiles    int `mapstructure:"nfiles"`
}

// Default returns the configuration matching the compiled-in defaults in
// internal/limits, so a caller that never touches bootcfg still boots with
// the same budgets limits.System starts with.
func Default() Config {
	return Config{
		MaxVnodes: 20000,
		MaxProcs:  limits.ProcMaxCount,
		Nfiles:    limits.NFILES,
	}
}

// BindFlags registers the boot-tunable flags on fs, for cmd/nucleusctl.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int("max-vnodes", d.MaxVnodes, "maximum live vnode count")
	fs.Int("max-procs", d.MaxProcs, "maximum live process count")
	fs.Int("nfiles", d.Nfiles, "per-process file descriptor table size")
}

// Load reads NUCLEUS_*-prefixed environment variables and any bound flags
// into a Config, falling back to Default for anything unset.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("nucleus")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("max-vnodes", d.MaxVnodes)
	v.SetDefault("max-procs", d.MaxProcs)
	v.SetDefault("nfiles", d.Nfiles)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Apply installs cfg's budgets into limits.System, replacing the
// compile-time defaults before any process is created (spec.md §4.E
// precondition: pid allocation and vnode admission both read limits.System).
// Nfiles is reported but not enforced here: limits.NFILES sizes the
// Fdtable_t array at compile time (spec.md §3), so a mismatched value is
// surfaced to the caller instead of silently ignored.
func Apply(cfg Config) error {
	limits.System.Vnodes = limits.NewAtomic(int64(cfg.MaxVnodes))
	limits.System.Procs = limits.NewAtomic(int64(cfg.MaxProcs))
	if cfg.Nfiles != limits.NFILES {
		return fmt.Errorf("bootcfg: nfiles=%d requires a rebuild (compiled for %d)", cfg.Nfiles, limits.NFILES)
	}
	return nil
}
