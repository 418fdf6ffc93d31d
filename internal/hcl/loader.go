// Package hcl loads pipeline definitions written in HCL and translates them
// into the format-agnostic config model.
package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/crosspipe/internal/config"
	"github.com/vk/crosspipe/internal/ctxlog"
	"github.com/vk/crosspipe/internal/fsutil"
)

// Loader implements config.Loader for .hcl pipeline files.
type Loader struct{}

// NewLoader returns a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load implements config.Loader. Each path may be a single file or a
// directory searched recursively; all parsed files merge into one model,
// with later job definitions replacing earlier ones of the same name.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("hcl loader: %w", err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtensions(p, ".hcl")
			if err != nil {
				return nil, fmt.Errorf("hcl loader: %w", err)
			}
			files = append(files, found...)
		} else {
			files = append(files, p)
		}
	}
	logger.Debug("Discovered pipeline definition files.", "count", len(files))

	model := &config.Model{
		DefaultBranch: "develop",
		Companions:    make(map[string]*config.Companion),
	}

	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("hcl loader: parse %s: %s", file, diags.Error())
		}

		var schema fileSchema
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &schema); diags.HasErrors() {
			return nil, fmt.Errorf("hcl loader: decode %s: %s", file, diags.Error())
		}

		if err := mergeFile(model, &schema); err != nil {
			return nil, fmt.Errorf("hcl loader: %s: %w", file, err)
		}
		logger.Debug("Loaded pipeline file.", "file", file, "jobs", len(schema.Jobs))
	}

	return model, nil
}

// mergeFile folds one parsed file into the model.
func mergeFile(model *config.Model, schema *fileSchema) error {
	if schema.Pipeline != nil {
		model.Project = schema.Pipeline.Name
		if schema.Pipeline.DefaultBranch != "" {
			model.DefaultBranch = schema.Pipeline.DefaultBranch
		}
		for _, c := range schema.Pipeline.Companions {
			model.Companions[c.Name] = &config.Companion{Name: c.Name, Remote: c.Remote}
		}
	}

	for _, jb := range schema.Jobs {
		job, err := translateJob(jb)
		if err != nil {
			return err
		}
		if existing := model.Job(job.Name); existing != nil {
			*existing = *job
		} else {
			model.Jobs = append(model.Jobs, job)
		}
	}
	return nil
}
