// Package buildctx implements BuildContext (§4.2): a pure function that
// stages a project config into a directory ready for `docker build` —
// Dockerfile, entrypoint and bootstrap scripts, tmux config, statusline
// script, dependency manifest, and the seeded agent-state documents
// described in §6.4. It makes no network calls and produces the same
// output for the same inputs.
package buildctx

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/jmgilman/scad/internal/config"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

const dirMode = 0o755

// dockerfileData is the template data for Dockerfile.tmpl.
type dockerfileData struct {
	AptPackages []string
	Python      *config.PythonSpec
}

// bootstrapData is the template data for bootstrap.sh.tmpl.
type bootstrapData struct {
	Plugins []string
}

// Write stages cfg into stagingDir: a Dockerfile and its build assets, ready
// to pass to ImageBuilder.Build. Missing optional inputs (no apt packages,
// no python spec, no plugins) are simply absent from the rendered output,
// never rendered as empty sections.
func Write(cfg *config.ProjectConfig, stagingDir string) error {
	if err := os.MkdirAll(stagingDir, dirMode); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	if err := renderTemplate("Dockerfile.tmpl", filepath.Join(stagingDir, "Dockerfile"), dockerfileData{
		AptPackages: cfg.AptPackages,
		Python:      cfg.Python,
	}); err != nil {
		return err
	}

	if err := renderTemplate("entrypoint.sh.tmpl", filepath.Join(stagingDir, "entrypoint.sh"), nil); err != nil {
		return err
	}

	if err := renderTemplate("bootstrap.sh.tmpl", filepath.Join(stagingDir, "bootstrap.sh"), bootstrapData{
		Plugins: cfg.Agent.Plugins,
	}); err != nil {
		return err
	}

	if err := renderTemplate("tmux.conf.tmpl", filepath.Join(stagingDir, "tmux.conf"), nil); err != nil {
		return err
	}

	if err := renderTemplate("statusline.sh.tmpl", filepath.Join(stagingDir, "statusline.sh"), nil); err != nil {
		return err
	}

	if cfg.Python != nil && cfg.Python.Manifest != "" {
		if err := copyManifest(cfg.Python.Manifest, stagingDir); err != nil {
			return err
		}
	}

	if err := writeJSON(filepath.Join(stagingDir, "claude.json"), seedClaudeJSON(cfg)); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(stagingDir, "settings.json"), seedSettingsJSON(cfg)); err != nil {
		return err
	}

	return nil
}

func renderTemplate(name, destPath string, data any) error {
	tmpl, err := template.ParseFS(templatesFS, "templates/"+name)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", name, err)
	}

	//nolint:gosec // G304: destPath is caller-controlled staging dir, not user input
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}

func copyManifest(manifestPath, stagingDir string) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("read dependency manifest: %w", err)
	}
	dest := filepath.Join(stagingDir, filepath.Base(manifestPath))
	if err := os.WriteFile(dest, data, 0o644); err != nil { //nolint:gosec // G306: non-secret build input
		return fmt.Errorf("stage dependency manifest: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec // G306: seeded agent-state doc
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// seedClaudeJSON builds the onboarding-completed, trust-accepted document
// described in §6.4.
func seedClaudeJSON(cfg *config.ProjectConfig) map[string]any {
	workdirKey := workdirKey(cfg)
	return map[string]any{
		"hasCompletedOnboarding": true,
		"installMethod":          "native",
		"projects": map[string]any{
			"/workspace/" + workdirKey: map[string]any{
				"hasTrustDialogAccepted": true,
			},
		},
	}
}

// seedSettingsJSON builds the retention/deny-list/hooks document described
// in §6.4.
func seedSettingsJSON(cfg *config.ProjectConfig) map[string]any {
	settings := map[string]any{
		"cleanupPeriodDays": 30,
		"includeCoAuthoredBy": false,
		"permissions": map[string]any{
			"deny": []string{
				"Bash(rm -rf /*)",
				"Bash(rm -rf ~*)",
				"Bash(dd if=/dev/zero of=/dev/sda*)",
				"Bash(mkfs.*)",
			},
		},
		"hooks": map[string]any{
			"PreToolUse":   []string{"/usr/local/bin/scad-statusline"},
			"Notification": []string{"/usr/local/bin/scad-statusline"},
		},
	}

	if len(cfg.Agent.Plugins) > 0 {
		plugins := make(map[string]bool, len(cfg.Agent.Plugins))
		for _, p := range cfg.Agent.Plugins {
			plugins[p] = true
		}
		settings["enabledPlugins"] = plugins
	}

	if cfg.Agent.PermissionMode == config.PermissionBypassAll {
		settings["defaultMode"] = "bypassPermissions"
		settings["skipDangerousModePermissionPrompt"] = true
	}

	return settings
}

func workdirKey(cfg *config.ProjectConfig) string {
	for key, repo := range cfg.Repos {
		if repo.Workdir {
			return key
		}
	}
	return ""
}
