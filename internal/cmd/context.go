package cmd

import (
	"context"

	"github.com/jmgilman/scad/internal/clone"
	"github.com/jmgilman/scad/internal/config"
	"github.com/jmgilman/scad/internal/creds"
	"github.com/jmgilman/scad/internal/gc"
	"github.com/jmgilman/scad/internal/imagebuild"
	"github.com/jmgilman/scad/internal/layout"
	"github.com/jmgilman/scad/internal/prompt"
	"github.com/jmgilman/scad/internal/runtime"
	"github.com/jmgilman/scad/internal/session"
)

// Deps bundles every component command handlers need, built once in
// rootCmd's PersistentPreRunE and threaded through the command context.
type Deps struct {
	Paths    layout.Paths
	Configs  *config.Store
	Runtime  runtime.Runtime
	Clones   *clone.Manager
	Images   *imagebuild.Builder
	Creds    *creds.Prober
	Sessions *session.Manager
	GC       *gc.Collector
	Prompt   prompt.Prompter
}

type contextKey string

const depsKey contextKey = "deps"

// WithDeps adds deps to ctx.
func WithDeps(ctx context.Context, deps *Deps) context.Context {
	return context.WithValue(ctx, depsKey, deps)
}

// DepsFromContext retrieves Deps from ctx, or nil if absent.
func DepsFromContext(ctx context.Context) *Deps {
	deps, _ := ctx.Value(depsKey).(*Deps)
	return deps
}

// requireDeps retrieves Deps from ctx or errors.
func requireDeps(ctx context.Context) (*Deps, error) {
	deps := DepsFromContext(ctx)
	if deps == nil {
		return nil, errDepsNotInitialized
	}
	return deps, nil
}
