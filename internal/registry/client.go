package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/daemon"
)

// client implements Client by querying the local Docker daemon through
// go-containerregistry's daemon package, which reads from the daemon's own
// image store rather than talking to a remote registry.
type client struct {
	config ClientConfig
}

// NewClient creates a Client backed by the local Docker daemon.
func NewClient(cfg ClientConfig) Client {
	return &client{config: cfg}
}

// GetMetadata fetches metadata for a locally built image reference, e.g. a
// tag like "scad-demo".
func (c *client) GetMetadata(ctx context.Context, ref string) (*ImageMetadata, error) {
	tag, err := name.NewTag(ref, name.WeakValidation)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRef, ref)
	}

	img, err := daemon.Image(tag, daemon.WithContext(ctx))
	if err != nil {
		return nil, mapError(ref, err)
	}

	digest, err := img.Digest()
	if err != nil {
		return nil, fmt.Errorf("read image digest: %w", err)
	}

	id, err := img.ConfigName()
	if err != nil {
		return nil, fmt.Errorf("read image id: %w", err)
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("read image config: %w", err)
	}

	metadata := &ImageMetadata{
		ID:     id.String(),
		Digest: digest.String(),
	}
	if !cfg.Created.IsZero() {
		metadata.Created = cfg.Created.Time
	}

	return metadata, nil
}

// Exists reports whether a local image reference exists in the daemon.
func (c *client) Exists(ctx context.Context, ref string) (bool, error) {
	_, err := c.GetMetadata(ctx, ref)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrImageNotFound) {
		return false, nil
	}
	return false, err
}

// mapError classifies a daemon lookup failure. Unlike remote's typed
// transport.Error, the daemon client surfaces a plain error whose message
// names the image when it isn't present, so that's what we match on.
func mapError(ref string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "no such image") || strings.Contains(msg, "reference does not exist") {
		return fmt.Errorf("%w: %s", ErrImageNotFound, ref)
	}
	return fmt.Errorf("inspect local image %s: %w", ref, err)
}
