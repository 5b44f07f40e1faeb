// Package tzresolve determines the host's IANA timezone name so it can be
// passed into a container's TZ environment variable.
package tzresolve

import (
	"os"
	"strings"
)

const fallback = "UTC"

// Resolve returns the host's IANA timezone name. It checks /etc/timezone
// first, then falls back to resolving the /etc/localtime symlink target,
// then to UTC if neither yields a usable name.
func Resolve() string {
	if tz := fromTimezoneFile("/etc/timezone"); tz != "" {
		return tz
	}
	if tz := fromLocaltimeSymlink("/etc/localtime"); tz != "" {
		return tz
	}
	return fallback
}

func fromTimezoneFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func fromLocaltimeSymlink(path string) string {
	target, err := os.Readlink(path)
	if err != nil {
		return ""
	}
	const marker = "zoneinfo/"
	idx := strings.Index(target, marker)
	if idx < 0 {
		return ""
	}
	return target[idx+len(marker):]
}
