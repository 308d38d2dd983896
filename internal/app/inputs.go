package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vk/moleculego/internal/session"
)

// buildInputs assembles the external input snapshot for the session, lowest
// precedence first: the molecule file's inputs block, then the YAML inputs
// file, then command-line --input pairs. Every call allocates a fresh
// Inputs, so a rebuild always reads as an input change to the controller.
func (a *App) buildInputs(appConfig *Config) (*session.Inputs, error) {
	values := make(map[string]any)

	for name, expr := range a.model.Inputs {
		val, diags := expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("input %q: %s", name, diags)
		}
		values[name] = val
	}

	if appConfig.InputsFile != "" {
		data, err := os.ReadFile(appConfig.InputsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read inputs file: %w", err)
		}
		fileValues := make(map[string]any)
		if err := yaml.Unmarshal(data, &fileValues); err != nil {
			return nil, fmt.Errorf("failed to parse inputs file %s: %w", appConfig.InputsFile, err)
		}
		for name, v := range fileValues {
			values[name] = v
		}
	}

	for name, v := range appConfig.Inputs {
		values[name] = v
	}

	return &session.Inputs{Values: values}, nil
}
