package config

import "fmt"

// ValidateJob checks that every step of a job carries the fields its kind
// requires. Loaders call this after translation so malformed definitions
// fail at load time, before any job is scheduled.
func ValidateJob(job *Job) error {
	for _, step := range job.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("job %q: %w", job.Name, err)
		}
	}
	return nil
}

func validateStep(step *Step) error {
	switch step.Kind {
	case StepRun:
		if step.Command == "" {
			return fmt.Errorf("step %q: run requires command", step.Name)
		}
	case StepCheckout:
		if step.Repo == "" {
			return fmt.Errorf("step %q: checkout requires repo", step.Name)
		}
	case StepRestoreCache, StepSaveCache:
		if step.Namespace == "" || step.Path == "" {
			return fmt.Errorf("step %q: %s requires namespace and path", step.Name, step.Kind)
		}
	case StepPersistWorkspace:
		if len(step.Paths) == 0 {
			return fmt.Errorf("step %q: persist_workspace requires paths", step.Name)
		}
	case StepAttachWorkspace:
		// No fields required.
	case StepPushImage:
		if step.ImageRef == "" || step.Source == "" {
			return fmt.Errorf("step %q: push_image requires image_ref and source", step.Name)
		}
	default:
		return fmt.Errorf("step %q: unknown kind %q", step.Name, step.Kind)
	}
	return nil
}
