// Package config holds the process-wide configuration surface,
// populated by viper from a config file, environment variables, and
// flag overrides the cmd/ tree binds on top, the same layering
// cucaracha's cmd/root.go sets up for its own single ClangConfig value.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of knobs the build/apply/serve/watch commands
// share. Struct tags match the viper/mapstructure keys read from
// .subsecond.yaml and SUBSECOND_* environment variables.
type Config struct {
	// LinkerPath is the explicit path to the platform linker driver
	// executable (cc/clang/link.exe); empty means auto-discover on PATH,
	// mirroring ClangConfig.ClangPath's "empty means auto-discover" rule.
	LinkerPath string `mapstructure:"linker_path"`

	// AnchorSymbol is the exported symbol name every patch artifact and
	// the base binary must both carry (§4.4.1's ASLR reconciliation
	// anchor).
	AnchorSymbol string `mapstructure:"anchor_symbol"`

	// PatchOutputDir is where the builder writes linked patch artifacts
	// before they're sent over the devtools transport.
	PatchOutputDir string `mapstructure:"patch_output_dir"`

	// DevtoolsListenAddr is the address `subsecond serve` binds for
	// incoming apply connections.
	DevtoolsListenAddr string `mapstructure:"devtools_listen_addr"`

	// UnwindTimeout bounds how long the Applier waits for every active
	// root frame to acknowledge an in-flight patch before shelving it
	// (§4.4.3 step 4, §7 UnwindTimeout).
	UnwindTimeout time.Duration `mapstructure:"unwind_timeout"`
}

// Default returns the configuration used when no file or environment
// override is present, following the struct-plus-DefaultX() convention
// ClangConfig and MemoryResolverConfig use throughout the retrieval
// pack's mc/llvm packages.
func Default() Config {
	return Config{
		AnchorSymbol:       "subsecond_anchor",
		PatchOutputDir:     ".subsecond/patches",
		DevtoolsListenAddr: "127.0.0.1:7343",
		UnwindTimeout:      2 * time.Second,
	}
}

// Load reads configuration the way cmd/root.go's initConfig does: a
// config file located by v (already pointed at .subsecond.yaml in the
// user's home directory, or an explicit --config path), layered over
// environment variables with a SUBSECOND prefix, layered over the
// values returned by Default. A missing config file is not an error;
// any other read failure is.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	v.SetEnvPrefix("SUBSECOND")
	v.AutomaticEnv()
	// Unmarshal only reads keys viper already knows, so every key is
	// registered with its default for AutomaticEnv to apply to it.
	v.SetDefault("linker_path", cfg.LinkerPath)
	v.SetDefault("anchor_symbol", cfg.AnchorSymbol)
	v.SetDefault("patch_output_dir", cfg.PatchOutputDir)
	v.SetDefault("devtools_listen_addr", cfg.DevtoolsListenAddr)
	v.SetDefault("unwind_timeout", cfg.UnwindTimeout)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}
