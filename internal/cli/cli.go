// Package cli parses command-line arguments into an app configuration.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/moleculego/internal/app"
)

// ExitError is a parse or validation failure with a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// inputFlags collects repeated --input key=value pairs.
type inputFlags map[string]string

func (f inputFlags) String() string {
	var pairs []string
	for k, v := range f {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (f inputFlags) Set(raw string) error {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || key == "" {
		return fmt.Errorf("input must be key=value, got %q", raw)
	}
	f[key] = value
	return nil
}

// Parse processes command-line arguments. It returns a populated app config,
// a boolean indicating the program should exit cleanly (help requested or no
// molecule path given), or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("moleculego", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
MoleculeGo - a staged, declarative remote-resource fetch orchestrator.

Usage:
  moleculego [options] [MOLECULE_PATH]

Arguments:
  MOLECULE_PATH
    Path to a single .hcl molecule file or a directory containing them.

Options:
`)
		flagSet.PrintDefaults()
	}

	moleculeFlag := flagSet.String("molecule", "", "Path to the molecule file or directory.")
	mFlag := flagSet.String("m", "", "Path to the molecule file or directory (shorthand).")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pollFlag := flagSet.Duration("poll-interval", 0, "Delay between passes in watch mode. 0 uses the molecule file or the engine default.")
	watchFlag := flagSet.Bool("watch", false, "Keep polling after a completed pass instead of exiting. SIGHUP reloads inputs.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP status endpoint. 0 is disabled.")
	inputsFileFlag := flagSet.String("inputs-file", "", "Path to a YAML file with input values.")
	inputs := inputFlags{}
	flagSet.Var(inputs, "input", "Set an input value as key=value. May be repeated.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *moleculeFlag != "" {
		path = *moleculeFlag
	} else if *mFlag != "" {
		path = *mFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		slog.Debug("No molecule path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *pollFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "poll-interval must not be negative"}
	}

	config, err := app.NewConfig(app.Config{
		MoleculePath: path,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		PollInterval: *pollFlag,
		Watch:        *watchFlag,
		StatusPort:   *statusPortFlag,
		InputsFile:   *inputsFileFlag,
		Inputs:       inputs,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
