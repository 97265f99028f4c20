package cmd

import (
	"context"
	"fmt"

	"github.com/Norgate-AV/polysched/internal/cache"
	"github.com/Norgate-AV/polysched/internal/compiler"
	"github.com/Norgate-AV/polysched/internal/config"
	"github.com/Norgate-AV/polysched/internal/logging"
	"github.com/Norgate-AV/polysched/internal/pipeline"
	"github.com/Norgate-AV/polysched/internal/polyhedral"
	"github.com/Norgate-AV/polysched/internal/registry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what every command builds from configuration
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *registry.Registry
	store    cache.Store
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.NewLoader().LoadForCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(logging.Options{Verbose: cfg.Verbose, JSON: cfg.LogJSON})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	reg, err := registry.New(polyhedral.Options{SampleExtent: cfg.SampleExtent}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.ProgramsDir != "" {
		if err := reg.Load(cfg.ProgramsDir); err != nil {
			return nil, err
		}
	}

	logger.Debug("configuration loaded",
		zap.String("work_dir", cfg.WorkDir),
		zap.String("programs_dir", cfg.ProgramsDir),
		zap.String("wrapper_store", cfg.WrapperStore.Driver),
		zap.String("wrapper_db", cfg.WrapperStore.Path),
	)

	return &app{cfg: cfg, logger: logger, registry: reg}, nil
}

// openStore opens the configured wrapper store, or returns nil when no
// store path is configured
func (a *app) openStore() (cache.Store, error) {
	if a.cfg.WrapperStore.Path == "" {
		return nil, nil
	}

	store, err := cache.Open(a.cfg.WrapperStore.Driver, a.cfg.WrapperStore.Path)
	if err != nil {
		return nil, err
	}

	a.store = store
	return store, nil
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}

	tc := compiler.NewToolchain(compiler.Options{
		CC:      a.cfg.Toolchain.CC,
		CXX:     a.cfg.Toolchain.CXX,
		CFlags:  a.cfg.Toolchain.CFlags,
		OpenMP:  a.cfg.Toolchain.OpenMP,
		Timeout: a.cfg.Toolchain.CompileTimeout,
	}, a.logger)

	return pipeline.New(pipeline.Options{
		WorkDir:    a.cfg.WorkDir,
		RunTimeout: a.cfg.RunTimeout,
		RunArgs:    a.cfg.RunArgs,
	}, tc, cache.NewResolver(tc, store, a.logger), a.logger), nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close wrapper store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// commandContext returns the command's context, which is unset when a
// command runs outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
