package hcl

import "github.com/hashicorp/hcl/v2"

// stepBlock represents a `step "kind" "name"` block inside a job.
type stepBlock struct {
	Kind string `hcl:"kind,label"`
	Name string `hcl:"name,label"`

	Command       string   `hcl:"command,optional"`
	Repo          string   `hcl:"repo,optional"`
	Namespace     string   `hcl:"namespace,optional"`
	ChecksumFiles []string `hcl:"checksum_files,optional"`
	Path          string   `hcl:"path,optional"`
	Paths         []string `hcl:"paths,optional"`
	ImageRef      string   `hcl:"image_ref,optional"`
	Source        string   `hcl:"source,optional"`
}

// filtersBlock represents the `filters` block of a job.
type filtersBlock struct {
	Branches []string `hcl:"branches,optional"`
}

// jobBlock represents a `job "name"` block from a pipeline file.
type jobBlock struct {
	Name          string        `hcl:"name,label"`
	Requires      []string      `hcl:"requires,optional"`
	Informational bool          `hcl:"informational,optional"`
	Filters       *filtersBlock `hcl:"filters,block"`
	Steps         []*stepBlock  `hcl:"step,block"`
}

// companionBlock declares an external repository the pipeline checks out.
type companionBlock struct {
	Name   string `hcl:"name,label"`
	Remote string `hcl:"remote"`
}

// pipelineBlock is the project header of a pipeline definition.
type pipelineBlock struct {
	Name          string            `hcl:"name,label"`
	DefaultBranch string            `hcl:"default_branch,optional"`
	Companions    []*companionBlock `hcl:"companion,block"`
}

// fileSchema is the top-level structure of one pipeline definition file.
type fileSchema struct {
	Pipeline *pipelineBlock `hcl:"pipeline,block"`
	Jobs     []*jobBlock    `hcl:"job,block"`
	Body     hcl.Body       `hcl:",remain"`
}
