package daemon

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metadata is project.json, written at spawn time so a daemon directory can
// be traced back to its project.
type Metadata struct {
	Root string `json:"root"`
}

// WriteMetadata writes project.json for root.
func WriteMetadata(path, root string) error {
	data, err := json.Marshal(Metadata{Root: root})
	if err != nil {
		return fmt.Errorf("failed to marshal project metadata: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// ReadMetadata reads project.json. Only management commands use it.
func ReadMetadata(path string) (Metadata, error) {
	var m Metadata
	data, err := os.ReadFile(path) //nolint:gosec // G304 - path from daemon directory
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("invalid project metadata %s: %w", path, err)
	}
	return m, nil
}
