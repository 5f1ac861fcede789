package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ternarybob/deepwork/internal/models"
)

func writeFile(t *testing.T, root, path string) {
	t.Helper()
	full := filepath.Join(root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestValidateOutputs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/plan.md")
	writeFile(t, root, "docs/a.md")
	writeFile(t, root, "docs/b.md")

	declared := map[string]models.OutputSpec{
		"plan_document": {Type: models.OutputKindFile, Description: "d", Required: true},
		"findings":      {Type: models.OutputKindFiles, Description: "d"},
	}

	tests := []struct {
		name      string
		submitted map[string]any
		wantErr   string
	}{
		{
			name: "valid file and files",
			submitted: map[string]any{
				"plan_document": "docs/plan.md",
				"findings":      []any{"docs/a.md", "docs/b.md"},
			},
		},
		{
			name: "valid with native string slice",
			submitted: map[string]any{
				"plan_document": "docs/plan.md",
				"findings":      []string{"docs/a.md"},
			},
		},
		{
			name:      "unknown key",
			submitted: map[string]any{"plan_document": "docs/plan.md", "bogus": "x"},
			wantErr:   "unknown outputs bogus; valid: findings, plan_document",
		},
		{
			name:      "missing required",
			submitted: map[string]any{"findings": []any{"docs/a.md"}},
			wantErr:   "missing required outputs plan_document",
		},
		{
			name:      "file value not a string",
			submitted: map[string]any{"plan_document": 42},
			wantErr:   "must be a single filepath string",
		},
		{
			name:      "files value not an array",
			submitted: map[string]any{"plan_document": "docs/plan.md", "findings": "docs/a.md"},
			wantErr:   "must be an array of filepath strings",
		},
		{
			name:      "files element not a string",
			submitted: map[string]any{"plan_document": "docs/plan.md", "findings": []any{"docs/a.md", 7}},
			wantErr:   "element 1 is",
		},
		{
			name:      "file does not exist",
			submitted: map[string]any{"plan_document": "docs/missing.md"},
			wantErr:   "references missing file",
		},
		{
			name:      "directory instead of file",
			submitted: map[string]any{"plan_document": "docs"},
			wantErr:   "references a directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputs(root, tt.submitted, declared)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected success, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSubmittedFilesOrder(t *testing.T) {
	declared := map[string]models.OutputSpec{
		"zeta":  {Type: models.OutputKindFile},
		"alpha": {Type: models.OutputKindFiles},
	}
	submitted := map[string]any{
		"zeta":  "docs/z.md",
		"alpha": []any{"docs/a1.md", "docs/a2.md"},
	}

	files := SubmittedFiles(submitted, declared)
	if len(files) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(files))
	}

	// Key order is deterministic (sorted), list order preserved within a key.
	if files[0].Path != "docs/a1.md" || files[0].OutputKey != "alpha" {
		t.Errorf("files[0] = %+v", files[0])
	}
	if files[1].Path != "docs/a2.md" {
		t.Errorf("files[1] = %+v", files[1])
	}
	if files[2].Path != "docs/z.md" || files[2].OutputKey != "zeta" {
		t.Errorf("files[2] = %+v", files[2])
	}
}
