package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/giygas/pn-calculator/calculator/entities"
	"github.com/giygas/pn-calculator/display"
	"github.com/giygas/pn-calculator/interfaces"
	"github.com/giygas/pn-calculator/logging"
)

var _ interfaces.SheetExporter = (*FileExporter)(nil)

// FileExporter writes rendered sheets into a directory, one file per patient.
// A later export of the same patient replaces the previous file.
type FileExporter struct {
	dir       string
	formatter *display.Formatter
}

// NewFileExporter creates dir if needed. A nil formatter uses the display default.
func NewFileExporter(dir string, f *display.Formatter) (*FileExporter, error) {
	if dir == "" {
		return nil, errors.New("export directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory %s: %w", dir, err)
	}
	if f == nil {
		f = display.Default()
	}
	return &FileExporter{dir: dir, formatter: f}, nil
}

// Export renders the sheet of p and returns the path it was written to
func (e *FileExporter) Export(ctx context.Context, p entities.Patient) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := Render(&buf, Build(p, e.formatter)); err != nil {
		return "", fmt.Errorf("render sheet: %w", err)
	}

	target := filepath.Join(e.dir, FileName(p))
	tmp, err := os.CreateTemp(e.dir, ".sheet-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp sheet: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write sheet: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close sheet: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("move sheet into place: %w", err)
	}

	logging.Debug("Sheet exported", "patient_id", p.ID, "file", target, "bytes", buf.Len())
	return target, nil
}

// Dir returns the export directory
func (e *FileExporter) Dir() string { return e.dir }
