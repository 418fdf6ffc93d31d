// Package yamlcfg loads pipeline definitions written in CircleCI-style YAML
// and translates them into the same format-agnostic config model the HCL
// loader produces. The Loader interface exists precisely so both formats
// can coexist; which one a project uses is a matter of taste.
package yamlcfg

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/vk/crosspipe/internal/config"
	"github.com/vk/crosspipe/internal/ctxlog"
	"github.com/vk/crosspipe/internal/fsutil"
)

// Loader implements config.Loader for .yml and .yaml pipeline files.
type Loader struct{}

// NewLoader returns a new YAML loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileSchema is the top-level YAML document structure.
type fileSchema struct {
	Pipeline *pipelineSchema      `yaml:"pipeline"`
	Jobs     map[string]jobSchema `yaml:"jobs"`
}

type pipelineSchema struct {
	Name          string            `yaml:"name"`
	DefaultBranch string            `yaml:"default_branch"`
	Companions    map[string]string `yaml:"companions"`
}

type jobSchema struct {
	Requires      []string     `yaml:"requires"`
	Informational bool         `yaml:"informational"`
	Filters       filterSchema `yaml:"filters"`
	Steps         []yaml.Node  `yaml:"steps"`
}

type filterSchema struct {
	Branches struct {
		Only []string `yaml:"only"`
	} `yaml:"branches"`
}

// stepSchema is the body of one step entry; the step kind is the map key.
type stepSchema struct {
	Name          string   `yaml:"name"`
	Command       string   `yaml:"command"`
	Repo          string   `yaml:"repo"`
	Namespace     string   `yaml:"namespace"`
	ChecksumFiles []string `yaml:"checksum_files"`
	Path          string   `yaml:"path"`
	Paths         []string `yaml:"paths"`
	ImageRef      string   `yaml:"image_ref"`
	Source        string   `yaml:"source"`
}

// Load implements config.Loader.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("yaml loader: %w", err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtensions(p, ".yml", ".yaml")
			if err != nil {
				return nil, fmt.Errorf("yaml loader: %w", err)
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

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("yaml loader: %w", err)
		}

		var schema fileSchema
		if err := yaml.Unmarshal(data, &schema); err != nil {
			return nil, fmt.Errorf("yaml loader: parse %s: %w", file, err)
		}

		if err := mergeFile(model, &schema); err != nil {
			return nil, fmt.Errorf("yaml loader: %s: %w", file, err)
		}
		logger.Debug("Loaded pipeline file.", "file", file, "jobs", len(schema.Jobs))
	}

	return model, nil
}

func mergeFile(model *config.Model, schema *fileSchema) error {
	if schema.Pipeline != nil {
		model.Project = schema.Pipeline.Name
		if schema.Pipeline.DefaultBranch != "" {
			model.DefaultBranch = schema.Pipeline.DefaultBranch
		}
		for name, remote := range schema.Pipeline.Companions {
			model.Companions[name] = &config.Companion{Name: name, Remote: remote}
		}
	}

	// YAML maps are unordered; sort names so the model is deterministic.
	names := make([]string, 0, len(schema.Jobs))
	for name := range schema.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		job, err := translateJob(name, schema.Jobs[name])
		if err != nil {
			return err
		}
		if existing := model.Job(name); existing != nil {
			*existing = *job
		} else {
			model.Jobs = append(model.Jobs, job)
		}
	}
	return nil
}

func translateJob(name string, js jobSchema) (*config.Job, error) {
	job := &config.Job{
		Name:          name,
		Requires:      js.Requires,
		Informational: js.Informational,
		Filter:        config.BranchFilter{Only: js.Filters.Branches.Only},
	}

	for i, node := range js.Steps {
		step, err := translateStep(&node)
		if err != nil {
			return nil, fmt.Errorf("job %q step %d: %w", name, i, err)
		}
		job.Steps = append(job.Steps, step)
	}

	if err := config.ValidateJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

// translateStep decodes one `- kind: {body}` entry. A bare string form
// `- run: echo hi` is accepted as shorthand for a run command.
func translateStep(node *yaml.Node) (*config.Step, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, fmt.Errorf("step must be a single-key mapping")
	}

	kind := node.Content[0].Value
	body := node.Content[1]

	step := &config.Step{Kind: config.StepKind(kind)}

	if body.Kind == yaml.ScalarNode {
		// Shorthand: `- run: make test`
		step.Command = body.Value
		step.Name = kind
		return step, nil
	}

	var ss stepSchema
	if err := body.Decode(&ss); err != nil {
		return nil, err
	}
	step.Name = ss.Name
	if step.Name == "" {
		step.Name = kind
	}
	step.Command = ss.Command
	step.Repo = ss.Repo
	step.Namespace = ss.Namespace
	step.ChecksumFiles = ss.ChecksumFiles
	step.Path = ss.Path
	step.Paths = ss.Paths
	step.ImageRef = ss.ImageRef
	step.Source = ss.Source
	return step, nil
}
