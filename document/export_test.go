package document

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	exporter, err := NewFileExporter(dir, nil)
	if err != nil {
		t.Fatalf("NewFileExporter failed: %v", err)
	}

	p := testPatient()
	location, err := exporter.Export(context.Background(), p)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if location != filepath.Join(dir, "Scheda_Rossi_Mario.txt") {
		t.Errorf("Unexpected location %s", location)
	}

	content, err := os.ReadFile(location)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "COGNOME: ROSSI") {
		t.Errorf("Exported sheet missing header:\n%s", content)
	}

	// Re-export replaces the file and leaves no temporaries behind
	p.Nutrition.GlucoseMl = 0
	if _, err := exporter.Export(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected a single file in the export directory, got %d", len(entries))
	}
}

func TestFileExporterErrors(t *testing.T) {
	if _, err := NewFileExporter("", nil); err == nil {
		t.Error("Expected an error for an empty directory")
	}

	exporter, err := NewFileExporter(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := exporter.Export(ctx, testPatient()); err == nil {
		t.Error("Expected an error for a cancelled context")
	}

	if err := os.RemoveAll(exporter.Dir()); err != nil {
		t.Fatal(err)
	}
	if _, err := exporter.Export(context.Background(), testPatient()); err == nil {
		t.Error("Expected an error once the directory is gone")
	}
}
