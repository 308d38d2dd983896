// Package hcl loads molecule files from disk into the format-agnostic
// config model. Only structure is decoded here; argument expressions are
// kept for late, per-invocation evaluation.
package hcl

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/moleculego/internal/config"
	"github.com/vk/moleculego/internal/ctxlog"
	"github.com/vk/moleculego/internal/fsutil"
)

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "session"},
		{Type: "inputs"},
		{Type: "stage"},
	},
}

var sessionSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "poll_interval"},
	},
}

var stageSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "atom", LabelNames: []string{"name"}},
	},
}

var atomSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "runner", Required: true},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "arguments"},
	},
}

// Load parses every .hcl file under the given paths into a single model.
// Files are loaded in sorted path order; stages keep their file order.
func Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, path := range paths {
		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", path, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl molecule files found in %v", paths)
	}
	logger.Debug("Found molecule files to load.", "files", files)

	model := &config.Model{Inputs: map[string]hcl.Expression{}}
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %s", file, diags)
		}
		if err := decodeFile(model, hclFile.Body); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", file, err)
		}
		logger.Debug("Loaded molecule file.", "file", file)
	}

	logger.Info("Molecule configuration loaded.", "stages", len(model.Stages), "inputs", len(model.Inputs))
	return model, nil
}

func decodeFile(model *config.Model, body hcl.Body) error {
	content, diags := body.Content(fileSchema)
	if diags.HasErrors() {
		return fmt.Errorf("%s", diags)
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case "session":
			if model.Session != nil {
				return fmt.Errorf("duplicate session block at %s", block.DefRange)
			}
			session, err := decodeSession(block)
			if err != nil {
				return err
			}
			model.Session = session
		case "inputs":
			if err := decodeInputs(model, block); err != nil {
				return err
			}
		case "stage":
			stage, err := decodeStage(block)
			if err != nil {
				return err
			}
			model.Stages = append(model.Stages, stage)
		}
	}
	return nil
}

func decodeSession(block *hcl.Block) (*config.Session, error) {
	content, diags := block.Body.Content(sessionSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags)
	}

	session := &config.Session{}
	if attr, ok := content.Attributes["poll_interval"]; ok {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%s", diags)
		}
		d, err := time.ParseDuration(val.AsString())
		if err != nil {
			return nil, fmt.Errorf("invalid poll_interval at %s: %w", attr.Range, err)
		}
		session.PollInterval = d
	}
	return session, nil
}

func decodeInputs(model *config.Model, block *hcl.Block) error {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return fmt.Errorf("%s", diags)
	}
	for name, attr := range attrs {
		if _, exists := model.Inputs[name]; exists {
			return fmt.Errorf("duplicate input %q at %s", name, attr.Range)
		}
		model.Inputs[name] = attr.Expr
	}
	return nil
}

func decodeStage(block *hcl.Block) (*config.Stage, error) {
	content, diags := block.Body.Content(stageSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags)
	}

	stage := &config.Stage{DefRange: block.DefRange}
	for _, atomBlock := range content.Blocks {
		atom, err := decodeAtom(atomBlock)
		if err != nil {
			return nil, err
		}
		stage.Atoms = append(stage.Atoms, atom)
	}
	if len(stage.Atoms) == 0 {
		return nil, fmt.Errorf("stage at %s has no atoms", block.DefRange)
	}
	return stage, nil
}

func decodeAtom(block *hcl.Block) (*config.Atom, error) {
	content, diags := block.Body.Content(atomSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags)
	}

	atom := &config.Atom{
		Name:      block.Labels[0],
		Arguments: map[string]hcl.Expression{},
		DefRange:  block.DefRange,
	}

	runnerVal, diags := content.Attributes["runner"].Expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags)
	}
	atom.Runner = runnerVal.AsString()

	for _, argBlock := range content.Blocks {
		attrs, diags := argBlock.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("%s", diags)
		}
		for name, attr := range attrs {
			if _, exists := atom.Arguments[name]; exists {
				return nil, fmt.Errorf("duplicate argument %q at %s", name, attr.Range)
			}
			atom.Arguments[name] = attr.Expr
		}
	}
	return atom, nil
}
