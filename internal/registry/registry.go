// Package registry reads locally-built image metadata through
// go-containerregistry's daemon client, used by the image builder to
// answer "does this tag exist" and "when was it built" without shelling
// out to `docker image inspect` a second time.
package registry

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for registry operations.
var (
	ErrImageNotFound = errors.New("image not found")
	ErrInvalidRef    = errors.New("invalid image reference")
)

// ImageMetadata contains OCI image metadata for a locally built image.
type ImageMetadata struct {
	ID      string // image ID (config digest)
	Digest  string
	Created time.Time
}

// ClientConfig configures the registry client.
type ClientConfig struct{}

// Client reads metadata for locally built images from the Docker daemon.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/client.go . Client
type Client interface {
	// GetMetadata returns metadata for a local image reference (e.g. a tag
	// such as "scad-demo"). Returns ErrImageNotFound if no such image is
	// present in the local daemon.
	GetMetadata(ctx context.Context, ref string) (*ImageMetadata, error)

	// Exists reports whether a local image reference exists.
	Exists(ctx context.Context, ref string) (bool, error)
}
