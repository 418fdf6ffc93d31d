// Package artifact abstracts the registry a workflow publishes images and
// build outputs to. The orchestrator only needs push/pull with a success or
// failure result; what the registry does with the bytes is its business.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrMissingCredential indicates a registry operation was attempted without
// the credentials it requires. Jobs that never touch the registry are
// unaffected.
var ErrMissingCredential = errors.New("missing credential")

// MissingCredentialError names the environment variable whose absence
// blocked a registry operation.
type MissingCredentialError struct {
	Name string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s: %s is not set", ErrMissingCredential.Error(), e.Name)
}

func (e *MissingCredentialError) Unwrap() error { return ErrMissingCredential }

// Credentials are the opaque secrets a registry needs. They are passed
// explicitly rather than read from ambient globals.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Validate returns a *MissingCredentialError for the first absent field.
func (c Credentials) Validate() error {
	if c.AccessKey == "" {
		return &MissingCredentialError{Name: "REGISTRY_ACCESS_KEY"}
	}
	if c.SecretKey == "" {
		return &MissingCredentialError{Name: "REGISTRY_SECRET_KEY"}
	}
	return nil
}

// Registry is the external collaborator that stores published artifacts.
type Registry interface {
	// Push uploads size bytes from blob under ref.
	Push(ctx context.Context, ref string, blob io.Reader, size int64) error
	// Pull returns a reader for the artifact stored under ref.
	Pull(ctx context.Context, ref string) (io.ReadCloser, error)
}
