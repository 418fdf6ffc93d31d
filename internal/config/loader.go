package config

import "context"

// Loader is the interface for a format-specific pipeline definition loader.
// The HCL and YAML packages each provide one; both translate into the same
// format-agnostic Model.
type Loader interface {
	// Load reads every definition file reachable from the given paths and
	// merges them into a single Model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}
