// Package app wires the engine together: logger, registry, loaded molecule
// model, and the drive loop that pulls observations out of the session
// controller.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/moleculego/internal/config"
	"github.com/vk/moleculego/internal/ctxlog"
	"github.com/vk/moleculego/internal/hcl"
	"github.com/vk/moleculego/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	model    *config.Model
}

// NewApp constructs the application: isolated logger, loaded molecule model,
// and a validated registry. Startup failures are programmer or operator
// errors, so it panics rather than limping on.
func NewApp(outW io.Writer, appConfig *Config, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := hcl.Load(ctx, appConfig.MoleculePath)
	if err != nil {
		panic(fmt.Errorf("failed to load molecule configuration: %w", err))
	}
	logger.Debug("Molecule configuration loaded into unified model.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All modules registered.", "count", len(modules))

	if err := reg.Validate(ctx); err != nil {
		// Mismatch between handler code and its registration is a
		// programmer error.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		model:    model,
	}
}

// Registry returns the application's registry. Primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
