package artifact

import (
	"context"
	"errors"
	"io"
)

// NopRegistry discards pushes and fails pulls. It backs runs that define no
// publish job and keeps tests free of network dependencies.
type NopRegistry struct{}

// Push implements Registry by draining and discarding the blob.
func (NopRegistry) Push(ctx context.Context, ref string, blob io.Reader, size int64) error {
	_, err := io.Copy(io.Discard, blob)
	return err
}

// Pull implements Registry.
func (NopRegistry) Pull(ctx context.Context, ref string) (io.ReadCloser, error) {
	return nil, errors.New("artifact: nop registry holds no artifacts")
}
