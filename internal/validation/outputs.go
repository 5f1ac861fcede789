package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/deepwork/internal/models"
)

// ValidateOutputs cross-checks a submitted outputs map against a step's
// declared output specs. Checks run in order: unknown keys, missing
// required keys, then per-key type and file-existence checks. Paths are
// resolved relative to the project root.
func ValidateOutputs(projectRoot string, submitted map[string]any, declared map[string]models.OutputSpec) error {
	var unknown []string
	for key := range submitted {
		if _, ok := declared[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		valid := make([]string, 0, len(declared))
		for key := range declared {
			valid = append(valid, key)
		}
		sort.Strings(valid)
		return fmt.Errorf("unknown outputs %s; valid: %s",
			strings.Join(unknown, ", "), strings.Join(valid, ", "))
	}

	var missing []string
	for key, spec := range declared {
		if !spec.Required {
			continue
		}
		if _, ok := submitted[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required outputs %s", strings.Join(missing, ", "))
	}

	keys := make([]string, 0, len(submitted))
	for key := range submitted {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		spec := declared[key]
		value := submitted[key]

		switch spec.Type {
		case models.OutputKindFile:
			path, ok := value.(string)
			if !ok {
				return fmt.Errorf("output '%s' must be a single filepath string, got %T", key, value)
			}
			if err := checkFileExists(projectRoot, key, path); err != nil {
				return err
			}

		case models.OutputKindFiles:
			paths, err := asStringSlice(value)
			if err != nil {
				return fmt.Errorf("output '%s' must be an array of filepath strings: %w", key, err)
			}
			for _, path := range paths {
				if err := checkFileExists(projectRoot, key, path); err != nil {
					return err
				}
			}

		default:
			return fmt.Errorf("output '%s' has unsupported declared type '%s'", key, spec.Type)
		}
	}

	return nil
}

// SubmittedFiles flattens a validated outputs map into (path, key) pairs in
// deterministic key order. Used by the quality gate to enumerate files.
func SubmittedFiles(submitted map[string]any, declared map[string]models.OutputSpec) []SubmittedFile {
	keys := make([]string, 0, len(submitted))
	for key := range submitted {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var files []SubmittedFile
	for _, key := range keys {
		spec, ok := declared[key]
		if !ok {
			continue
		}
		switch spec.Type {
		case models.OutputKindFile:
			if path, ok := submitted[key].(string); ok {
				files = append(files, SubmittedFile{Path: path, OutputKey: key})
			}
		case models.OutputKindFiles:
			paths, err := asStringSlice(submitted[key])
			if err != nil {
				continue
			}
			for _, path := range paths {
				files = append(files, SubmittedFile{Path: path, OutputKey: key})
			}
		}
	}
	return files
}

// SubmittedFile is one output file with the output key it belongs to.
type SubmittedFile struct {
	Path      string
	OutputKey string
}

func checkFileExists(projectRoot, key, path string) error {
	full := filepath.Join(projectRoot, path)
	info, err := os.Stat(full)
	if err != nil {
		return fmt.Errorf("output '%s' references missing file: %s", key, full)
	}
	if info.IsDir() {
		return fmt.Errorf("output '%s' references a directory, not a file: %s", key, full)
	}
	return nil
}

// asStringSlice accepts []string directly or []any whose elements are all
// strings (the shape JSON decoding produces).
func asStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, element := range v {
			s, ok := element.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, not a string", i, element)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("got %T, not an array", value)
	}
}
