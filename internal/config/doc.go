// Package config defines the format-agnostic pipeline model for the
// orchestrator, along with the Loader interface implemented by the
// format-specific packages (HCL, YAML).
//
// The config.Model is the single source of truth for the dag, runner and
// engine packages; nothing downstream of a Loader ever sees HCL bodies or
// YAML nodes.
package config
