package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Norgate-AV/polysched/internal/cache"
	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultWorkDir        = "."
	DefaultListen         = "localhost:50051"
	DefaultConcurrency    = 1
	DefaultSampleExtent   = 6
	DefaultRunTimeout     = 10 * time.Minute
	DefaultCC             = "cc"
	DefaultCXX            = "c++"
	DefaultOpenMP         = true
	DefaultCompileTimeout = 5 * time.Minute
	DefaultStoreDriver    = cache.DriverSQLite
	DefaultVerbose        = false
)

// Holds the configuration options for polysched
type Config struct {
	// Directory for generated code, shared objects and wrappers
	WorkDir string

	// Extra program catalogues, watched in server mode
	ProgramsDir string

	// gRPC listen address
	Listen string

	// Maximum concurrent pipeline runs
	Concurrency int

	// Values per iterator sampled by dependence analysis
	SampleExtent int

	// Upper bound for one wrapper run
	RunTimeout time.Duration

	// Arguments passed to every wrapper
	RunArgs []string

	Toolchain ToolchainConfig

	WrapperStore StoreConfig

	// Enable verbose output
	Verbose bool

	// Log as JSON
	LogJSON bool
}

// ToolchainConfig configures the native compiler
type ToolchainConfig struct {
	CC             string
	CXX            string
	CFlags         []string
	OpenMP         bool
	CompileTimeout time.Duration
}

// StoreConfig selects the wrapper store. An empty Path disables it.
type StoreConfig struct {
	Driver string
	Path   string
}

func Load() (*Config, error) {
	cfg := &Config{
		WorkDir:      viper.GetString("work_dir"),
		ProgramsDir:  viper.GetString("programs_dir"),
		Listen:       viper.GetString("listen"),
		Concurrency:  viper.GetInt("concurrency"),
		SampleExtent: viper.GetInt("sample_extent"),
		RunTimeout:   viper.GetDuration("run_timeout"),
		RunArgs:      viper.GetStringSlice("run_args"),
		Toolchain: ToolchainConfig{
			CC:             viper.GetString("toolchain.cc"),
			CXX:            viper.GetString("toolchain.cxx"),
			CFlags:         viper.GetStringSlice("toolchain.cflags"),
			OpenMP:         viper.GetBool("toolchain.openmp"),
			CompileTimeout: viper.GetDuration("toolchain.compile_timeout"),
		},
		WrapperStore: StoreConfig{
			Driver: viper.GetString("wrapper_store.driver"),
			Path:   viper.GetString("wrapper_store.path"),
		},
		Verbose: viper.GetBool("verbose"),
		LogJSON: viper.GetBool("log_json"),
	}

	// Apply defaults if not set
	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultWorkDir
	}

	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}

	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	if cfg.SampleExtent == 0 {
		cfg.SampleExtent = DefaultSampleExtent
	}

	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}

	if cfg.Toolchain.CC == "" {
		cfg.Toolchain.CC = DefaultCC
	}

	if cfg.Toolchain.CXX == "" {
		cfg.Toolchain.CXX = DefaultCXX
	}

	if cfg.Toolchain.CompileTimeout == 0 {
		cfg.Toolchain.CompileTimeout = DefaultCompileTimeout
	}

	if cfg.WrapperStore.Driver == "" {
		cfg.WrapperStore.Driver = DefaultStoreDriver
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	abs, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return fmt.Errorf("invalid work directory: %v", err)
	}

	c.WorkDir = abs

	// Resolve programs directory
	if c.ProgramsDir != "" {
		abs, err := filepath.Abs(c.ProgramsDir)
		if err != nil {
			return fmt.Errorf("invalid programs directory: %v", err)
		}

		c.ProgramsDir = abs
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}

	if c.SampleExtent < 1 {
		return fmt.Errorf("sample_extent must be at least 1, got %d", c.SampleExtent)
	}

	if c.RunTimeout < 0 || c.Toolchain.CompileTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	// Validate store driver
	if !isValidDriver(c.WrapperStore.Driver) {
		return fmt.Errorf("invalid wrapper store driver: %s", c.WrapperStore.Driver)
	}

	if c.WrapperStore.Path != "" {
		abs, err := filepath.Abs(c.WrapperStore.Path)
		if err != nil {
			return fmt.Errorf("invalid wrapper store path: %v", err)
		}

		c.WrapperStore.Path = abs
	}

	return nil
}

func isValidDriver(driver string) bool {
	return driver == cache.DriverSQLite || driver == cache.DriverBolt
}
