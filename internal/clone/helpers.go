package clone

import (
	"errors"
	"os"
)

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

func writeIfAbsent(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	//nolint:gosec // G306: agent state seed file, not secret
	return os.WriteFile(path, data, 0o644)
}
