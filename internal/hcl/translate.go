package hcl

import (
	"github.com/vk/crosspipe/internal/config"
)

// translateJob converts the HCL-specific job schema into the agnostic model.
// Field validation lives in the config package, shared with the YAML loader.
func translateJob(jb *jobBlock) (*config.Job, error) {
	job := &config.Job{
		Name:          jb.Name,
		Requires:      jb.Requires,
		Informational: jb.Informational,
	}
	if jb.Filters != nil {
		job.Filter = config.BranchFilter{Only: jb.Filters.Branches}
	}

	for _, sb := range jb.Steps {
		job.Steps = append(job.Steps, &config.Step{
			Kind:          config.StepKind(sb.Kind),
			Name:          sb.Name,
			Command:       sb.Command,
			Repo:          sb.Repo,
			Namespace:     sb.Namespace,
			ChecksumFiles: sb.ChecksumFiles,
			Path:          sb.Path,
			Paths:         sb.Paths,
			ImageRef:      sb.ImageRef,
			Source:        sb.Source,
		})
	}

	if err := config.ValidateJob(job); err != nil {
		return nil, err
	}
	return job, nil
}
