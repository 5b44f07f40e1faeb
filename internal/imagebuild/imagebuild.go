// Package imagebuild implements the ImageBuilder (§4.3): building a
// project's image from a staged build context, checking whether it already
// exists, and pruning superseded images for a config.
package imagebuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jmgilman/scad/internal/registry"
	"github.com/jmgilman/scad/internal/runtime"
)

// ErrBuildFailed marks a failed image build; the wrapped message carries the
// last non-empty line of build output (no separate error line is picked out).
var ErrBuildFailed = errors.New("image build failed")

// imageTagPrefix names the managed image namespace; a config's tag is
// "<imageTagPrefix>-<configName>".
const imageTagPrefix = "scad"

// Info describes a built image.
type Info struct {
	Tag       string
	CreatedAt time.Time
}

// Builder builds and queries per-config images.
type Builder struct {
	runtime  runtime.Runtime
	registry registry.Client
}

// New creates a Builder.
func New(rt runtime.Runtime, reg registry.Client) *Builder {
	return &Builder{runtime: rt, registry: reg}
}

// Tag returns the image tag for a config name.
func Tag(configName string) string {
	return imageTagPrefix + "-" + configName
}

// Exists reports whether a config's image is already built.
func (b *Builder) Exists(ctx context.Context, configName string) (bool, error) {
	return b.registry.Exists(ctx, Tag(configName))
}

// Info returns metadata for a config's built image, or nil if it doesn't
// exist.
func (b *Builder) Info(ctx context.Context, configName string) (*Info, error) {
	meta, err := b.registry.GetMetadata(ctx, Tag(configName))
	if err != nil {
		if errors.Is(err, registry.ErrImageNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get image info: %w", err)
	}
	return &Info{Tag: Tag(configName), CreatedAt: meta.Created}, nil
}

// Build builds a config's image from a staged build context directory,
// streaming output lines to progress. Returns ErrBuildFailed wrapping the
// last non-empty output line on failure.
func (b *Builder) Build(ctx context.Context, configName, contextDir string, progress io.Writer) error {
	err := b.runtime.Build(ctx, &runtime.BuildConfig{
		Context:  contextDir,
		Tag:      Tag(configName),
		Progress: progress,
	})
	if err != nil {
		if errors.Is(err, runtime.ErrBuildFailed) {
			return fmt.Errorf("%w: %s", ErrBuildFailed, err)
		}
		return fmt.Errorf("build image: %w", err)
	}
	return nil
}

// BuildIfMissing builds the image only if it doesn't already exist,
// returning the tag either way.
func (b *Builder) BuildIfMissing(ctx context.Context, configName, contextDir string, progress io.Writer) (string, error) {
	exists, err := b.Exists(ctx, configName)
	if err != nil {
		return "", err
	}
	if exists {
		return Tag(configName), nil
	}
	if err := b.Build(ctx, configName, contextDir, progress); err != nil {
		return "", err
	}
	return Tag(configName), nil
}

// PruneOld removes the image a config's tag previously pointed at, now that
// it points at currentImageID. Docker's tag-retag semantics mean the prior
// image layer is otherwise left dangling after every rebuild. Best-effort:
// swallows the removal error (the image may still be referenced by a
// running container, or already gone).
func (b *Builder) PruneOld(ctx context.Context, previousImageID, currentImageID string) {
	if previousImageID == "" || previousImageID == currentImageID {
		return
	}
	_ = b.runtime.RemoveImage(ctx, previousImageID) //nolint:errcheck // best-effort prune
}
