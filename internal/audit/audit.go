package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Auditor keeps raw payloads that could not be processed, such as model
// output that failed to parse, so they can be inspected later.
type Auditor struct {
	Dir string
}

func NewAuditor(dir string) *Auditor {
	return &Auditor{Dir: dir}
}

// SaveJSON writes data as indented JSON to <prefix>-<uuid>.json and returns
// the file name.
func (a *Auditor) SaveJSON(prefix string, data any) (string, error) {
	if err := os.MkdirAll(a.Dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create audit directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.json", prefix, uuid.NewString())
	path := filepath.Join(a.Dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal data to JSON: %w", err)
	}
	if err := os.WriteFile(path, jsonData, 0o600); err != nil {
		return "", fmt.Errorf("failed to write audit file: %w", err)
	}

	log.Printf("[audit] Saved payload to %s", path)
	return filename, nil
}
