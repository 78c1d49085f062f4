// Package export writes pipeline results to disk: the result JSON
// consumed by downstream tooling and an XLSX workbook for manual
// review.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/renqiu/gohomework"
)

// ResultPath returns where the result JSON for docPath lands inside
// dir: the document's stem plus a _result.json suffix.
func ResultPath(dir, docPath string) string {
	return filepath.Join(dir, stem(docPath)+"_result.json")
}

// WorkbookPath returns where the answers workbook for docPath lands
// inside dir.
func WorkbookPath(dir, docPath string) string {
	return filepath.Join(dir, stem(docPath)+"_result.xlsx")
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// WriteJSON writes the result for docPath into dir, success and error
// shapes alike, and returns the file path. Output is indented UTF-8
// with no HTML escaping.
func WriteJSON(dir, docPath string, res *gohomework.Result) (string, error) {
	path := ResultPath(dir, docPath)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating result file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		f.Close()
		return "", fmt.Errorf("encoding result: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	slog.Info("export: result written", "path", path, "success", res.Success)
	return path, nil
}
