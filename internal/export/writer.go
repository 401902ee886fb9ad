// Package export serializes finalized scan results and renders the
// operator-facing report.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
)

// Writer persists scan results under a directory, one JSON file per scan.
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Save writes the result as pretty JSON and returns the file path.
func (w *Writer) Save(result *model.ScanResult) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", eris.Wrap(err, "export: create dir")
	}

	path := filepath.Join(w.dir, fmt.Sprintf("scan-%s.json", result.ID))
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "export: marshal result")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrap(err, "export: write result")
	}
	return path, nil
}

// Load reads a previously saved result.
func Load(path string) (*model.ScanResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: read result")
	}
	var result model.ScanResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, eris.Wrap(err, "export: parse result")
	}
	return &result, nil
}
