package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/moleculego/internal/builder"
	"github.com/vk/moleculego/internal/cell"
	"github.com/vk/moleculego/internal/ctxlog"
	"github.com/vk/moleculego/internal/hclconv"
	"github.com/vk/moleculego/internal/session"
)

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	mol, err := builder.Build(ctx, a.model, a.registry)
	if err != nil {
		return fmt.Errorf("failed to build molecule: %w", err)
	}
	if len(mol) == 0 {
		a.logger.Warn("No stages found in molecule, nothing to execute.")
		return nil
	}
	a.logger.Debug("Molecule built.", "stages", len(mol))

	poll := appConfig.PollInterval
	if poll == 0 && a.model.Session != nil {
		poll = a.model.Session.PollInterval
	}
	var opts []session.Option
	if poll > 0 {
		opts = append(opts, session.WithPollInterval(poll))
	}

	ctrl, err := session.New(mol, opts...)
	if err != nil {
		return fmt.Errorf("failed to create session controller: %w", err)
	}
	defer ctrl.Close()

	var status *statusServer
	if appConfig.StatusPort > 0 {
		status = newStatusServer(a.logger, appConfig.StatusPort)
		defer status.close()
	}

	inputs, err := a.buildInputs(appConfig)
	if err != nil {
		return fmt.Errorf("failed to assemble inputs: %w", err)
	}

	var reload chan os.Signal
	if appConfig.Watch {
		reload = make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)
		defer signal.Stop(reload)
	}

	a.logger.Info("🚀 Starting session.", "stages", len(mol), "watch", appConfig.Watch)
	for {
		// A SIGHUP re-assembles the inputs; the fresh Inputs reference is
		// what tells the controller to restart.
		select {
		case <-reload:
			a.logger.Info("Reload signal received, re-reading inputs.")
			inputs, err = a.buildInputs(appConfig)
			if err != nil {
				return fmt.Errorf("failed to re-assemble inputs: %w", err)
			}
		default:
		}

		obs, err := ctrl.Advance(ctx, inputs)
		if err != nil {
			if ctx.Err() != nil {
				a.logger.Info("Session stopped.", "reason", ctx.Err())
				return nil
			}
			return fmt.Errorf("session advance failed: %w", err)
		}
		if status != nil {
			status.setStatus(obs.Status)
		}
		a.logObservation(obs)

		switch obs.Status {
		case session.StatusFinished:
			a.renderResults(obs.Props)
			if !appConfig.Watch {
				a.logger.Info("🏁 Session finished.")
				return nil
			}
		case session.StatusError:
			failures := failedKeys(obs.Props)
			if !appConfig.Watch {
				name := failures[0]
				return fmt.Errorf("pass failed at %q: %w", name, obs.Props.Lookup(name).Err())
			}
			// In watch mode an error latches until the inputs change; a
			// reload is the way out.
		}
	}
}

// logObservation reports one (status, props) observation at debug level.
func (a *App) logObservation(obs session.Observation) {
	states := make(map[string]string, len(obs.Props))
	for name, c := range obs.Props {
		states[name] = c.State().String()
	}
	a.logger.Debug("Observation.", "status", obs.Status.String(), "cells", states)
}

// renderResults prints the settled props values as JSON to the app's output.
func (a *App) renderResults(bag cell.Bag) {
	names := make([]string, 0, len(bag))
	for name := range bag {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(names))
	for _, name := range names {
		v, ok := bag.Lookup(name).BestValue()
		if !ok {
			continue
		}
		if cv, isCty := v.(cty.Value); isCty {
			v = hclconv.FromCty(cv)
		}
		out[name] = v
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		a.logger.Error("Failed to render results.", "error", err)
		return
	}
	fmt.Fprintln(a.outW, string(encoded))
}

func failedKeys(bag cell.Bag) []string {
	var keys []string
	for name, c := range bag {
		if c.IsFailed() {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}
