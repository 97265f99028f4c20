package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. POLYSCHED_WORK_DIR
const EnvPrefix = "POLYSCHED"

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"work-dir":      "work_dir",
	"programs-dir":  "programs_dir",
	"listen":        "listen",
	"concurrency":   "concurrency",
	"sample-extent": "sample_extent",
	"run-timeout":   "run_timeout",
	"cc":            "toolchain.cc",
	"openmp":        "toolchain.openmp",
	"wrapper-store": "wrapper_store.driver",
	"wrapper-db":    "wrapper_store.path",
	"verbose":       "verbose",
	"log-json":      "log_json",
}

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForCommand loads configuration for cmd. Later sources win:
// defaults, global config, local config, environment, flags.
func (l *Loader) LoadForCommand(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig()
	l.bindEnv()
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("work_dir", DefaultWorkDir)
	viper.SetDefault("listen", DefaultListen)
	viper.SetDefault("concurrency", DefaultConcurrency)
	viper.SetDefault("sample_extent", DefaultSampleExtent)
	viper.SetDefault("run_timeout", DefaultRunTimeout)
	viper.SetDefault("toolchain.cc", DefaultCC)
	viper.SetDefault("toolchain.cxx", DefaultCXX)
	viper.SetDefault("toolchain.cflags", []string{"-O2"})
	viper.SetDefault("toolchain.openmp", DefaultOpenMP)
	viper.SetDefault("toolchain.compile_timeout", DefaultCompileTimeout)
	viper.SetDefault("wrapper_store.driver", DefaultStoreDriver)
	viper.SetDefault("verbose", DefaultVerbose)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	globalDir := GlobalConfigDir()
	if globalDir == "" {
		return
	}

	for _, ext := range configExts {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.MergeInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig merges the nearest .polysched.* above the working directory
func (l *Loader) loadLocalConfig() {
	cwd, err := os.Getwd()
	if err != nil {
		return // silently ignore, config.Load() will handle validation
	}

	localPath := FindLocalConfig(cwd)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindEnv maps POLYSCHED_* variables onto config keys. POLYSCHED_WRAPPER_DB
// is kept as a short alias for the store path.
func (l *Loader) bindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("wrapper_store.path", EnvPrefix+"_WRAPPER_STORE_PATH", EnvPrefix+"_WRAPPER_DB")
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
