package review

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/deepwork/internal/validation"
)

// Payload framing markers. The reviewer prompt references these verbatim.
const (
	outputsBegin  = "==================== BEGIN OUTPUTS ===================="
	outputsEnd    = "==================== END OUTPUTS ===================="
	noFilesNotice = "[No files provided]"
)

// buildPayload assembles the user payload for one evaluation task. With
// maxInlineFiles or fewer files the contents are inlined; otherwise the
// payload lists paths with their output keys and tells the reviewer to read
// files as needed. Author notes, when present, get their own section.
func buildPayload(projectRoot string, files []validation.SubmittedFile, notes string, maxInlineFiles int) string {
	var b strings.Builder

	switch {
	case len(files) == 0:
		b.WriteString(noFilesNotice)

	case len(files) <= maxInlineFiles:
		b.WriteString(outputsBegin)
		b.WriteString("\n")
		for _, file := range files {
			b.WriteString(fmt.Sprintf("-------------------- %s --------------------\n", file.Path))
			b.WriteString(readFileForReview(projectRoot, file.Path))
			b.WriteString("\n")
		}
		b.WriteString(outputsEnd)

	default:
		b.WriteString(fmt.Sprintf("%d files were submitted. Read them from disk as needed to complete the review.\n\n", len(files)))
		for _, file := range files {
			b.WriteString(fmt.Sprintf("- %s (output: %s)\n", file.Path, file.OutputKey))
		}
	}

	if notes != "" {
		b.WriteString("\n\nAUTHOR NOTES\n")
		b.WriteString(notes)
	}

	return b.String()
}

// readFileForReview returns the file's UTF-8 contents, or a placeholder for
// binary, missing, or unreadable files.
func readFileForReview(projectRoot, path string) string {
	full := filepath.Join(projectRoot, path)

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "[File not found]"
		}
		return fmt.Sprintf("[Error reading file: %v]", err)
	}

	if !utf8.Valid(data) {
		abs, absErr := filepath.Abs(full)
		if absErr != nil {
			abs = full
		}
		return fmt.Sprintf("[Binary file - not included in review. Read from: %s]", abs)
	}

	return string(data)
}
