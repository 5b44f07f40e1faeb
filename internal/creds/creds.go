// Package creds implements the CredentialsProbe (§4.4): reading the
// operator's opaque OAuth credentials file for a freshness check, and
// refreshing a running container's live copy from the host staging file.
package creds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmgilman/scad/internal/runtime"
)

// Sentinel errors for credential operations.
var (
	// ErrCredentialsInvalid is returned by a caller's up-front freshness
	// check (e.g. session start, §4.7.1 step 1) before any container
	// exists to refresh.
	ErrCredentialsInvalid  = errors.New("credentials invalid")
	ErrCredentialsExpired  = errors.New("credentials expired")
	ErrContainerNotFound   = errors.New("container not found")
	ErrContainerNotRunning = errors.New("container not running")
)

// lowCredentialsWarningThreshold is the §4.7.1 step 1 remaining-time below
// which a caller should warn the operator instead of failing outright.
const lowCredentialsWarningThreshold = 1 * time.Hour

// liveCredentialsPath is where a running container expects its live
// credentials file, refreshed from the host staging copy.
const liveCredentialsPath = "/home/agent/.credentials-live.json"

type credentialsFile struct {
	OAuth struct {
		ExpiresAt int64 `json:"expiresAt"`
	} `json:"oauth"`
}

// Status is the result of a freshness check.
type Status struct {
	Valid          bool
	HoursRemaining float64
}

// Low reports whether valid credentials are within the §4.7.1 warning
// window of expiring.
func (s Status) Low() bool {
	return s.Valid && s.HoursRemaining < lowCredentialsWarningThreshold.Hours()
}

// Prober checks and refreshes host-staged credentials.
type Prober struct {
	stagingPath string
	runtime     runtime.Runtime
}

// New creates a Prober reading credentials from stagingPath (the host file
// bind-mounted read-only into every session container).
func New(stagingPath string, rt runtime.Runtime) *Prober {
	return &Prober{stagingPath: stagingPath, runtime: rt}
}

// Path returns the host staging path credentials are read from, so callers
// can bind-mount the same file into a new session container (§4.4).
func (p *Prober) Path() string {
	return p.stagingPath
}

// Check reads the staging credentials file and reports whether they're
// still valid. It never returns an error: any read or parse failure is
// reported as Valid: false.
func (p *Prober) Check() Status {
	data, err := os.ReadFile(p.stagingPath)
	if err != nil {
		return Status{Valid: false}
	}

	var cf credentialsFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return Status{Valid: false}
	}

	expiresAt := time.UnixMilli(cf.OAuth.ExpiresAt)
	remaining := time.Until(expiresAt)
	if remaining <= 0 {
		return Status{Valid: false}
	}

	return Status{Valid: true, HoursRemaining: remaining.Hours()}
}

// Refresh copies the host staging credentials file into the live path of
// the container containerID, returning the hours remaining on success.
// Requires the staged credentials to currently be valid and the container
// to be running.
func (p *Prober) Refresh(ctx context.Context, containerID string) (float64, error) {
	status := p.Check()
	if !status.Valid {
		return 0, ErrCredentialsExpired
	}

	c, err := p.runtime.Get(ctx, containerID)
	if err != nil {
		if errors.Is(err, runtime.ErrNotFound) {
			return 0, ErrContainerNotFound
		}
		return 0, fmt.Errorf("get container: %w", err)
	}
	if c.Status != runtime.StatusRunning {
		return 0, ErrContainerNotRunning
	}

	if err := p.runtime.CopyTo(ctx, containerID, p.stagingPath, liveCredentialsPath); err != nil {
		return 0, fmt.Errorf("copy credentials into container: %w", err)
	}

	return status.HoursRemaining, nil
}
