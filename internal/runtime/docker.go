package runtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmgilman/scad/internal/exec"
)

// dockerRuntime implements Runtime using the Docker CLI.
type dockerRuntime struct {
	baseRuntime
}

type dockerParser struct{}

// NewDockerRuntime creates a Runtime backed by the Docker CLI.
func NewDockerRuntime(e exec.Executor) Runtime {
	return &dockerRuntime{
		baseRuntime: baseRuntime{
			exec:        e,
			binaryName:  "docker",
			execCommand: []string{"docker", "exec"},
			listArgs:    []string{"ps", "-a"},
			parser:      &dockerParser{},
		},
	}
}

type dockerInspect struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Created string `json:"Created"`
	State   struct {
		Status string `json:"Status"`
	} `json:"State"`
	Config struct {
		Image  string            `json:"Image"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
}

func (d *dockerInspect) toContainer() *Container {
	status := parseContainerStatus(d.State.Status)
	name := strings.TrimPrefix(d.Name, "/")
	createdAt := parseDockerTime(d.Created)

	return &Container{
		ID:        d.ID,
		Name:      name,
		Image:     d.Config.Image,
		Status:    status,
		Labels:    d.Config.Labels,
		CreatedAt: createdAt,
	}
}

// dockerListItem represents a single item in `docker ps --format json` output.
// Docker outputs one JSON object per line (NDJSON), not an array.
type dockerListItem struct {
	ID     string `json:"ID"`
	Names  string `json:"Names"`
	Image  string `json:"Image"`
	State  string `json:"State"`
	Labels string `json:"Labels"` // comma-separated key=value pairs
}

func (d *dockerListItem) toContainer() Container {
	return Container{
		ID:     d.ID,
		Name:   d.Names,
		Image:  d.Image,
		Status: parseContainerStatus(d.State),
		Labels: parseDockerLabelString(d.Labels),
	}
}

func parseDockerLabelString(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}

func parseDockerTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func (p *dockerParser) parseInspect(data []byte) (*Container, error) {
	var infos []dockerInspect
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, fmt.Errorf("parse container info: %w", err)
	}
	if len(infos) == 0 {
		return nil, ErrNotFound
	}
	return infos[0].toContainer(), nil
}

func (p *dockerParser) parseList(data []byte) ([]Container, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "[]" {
		return []Container{}, nil
	}

	lines := strings.Split(trimmed, "\n")
	containers := make([]Container, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var item dockerListItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, fmt.Errorf("parse container list item: %w", err)
		}
		containers = append(containers, item.toContainer())
	}

	return containers, nil
}


