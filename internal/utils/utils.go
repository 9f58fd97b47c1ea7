// Package utils provides utility functions for filename handling and UUID generation.
//
// Functions:
//   - SanitizeFilename: Returns a safe filename for storage.
//     Input: string (filename)
//     Output: string (sanitized filename)
//   - OutputFilename: Returns the download name for an export.
//     Input: string (user supplied name, may be empty)
//     Output: string (sanitized name ending in .pdf, "output.pdf" by default)
//   - GenerateUUID: Returns a new UUID string.
//     Output: string (UUID)
//
// Used throughout the backend for safe file handling and unique IDs.
package utils

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// DefaultOutputName is the export filename used when none is given.
const DefaultOutputName = "output"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func SanitizeFilename(name string) string {
	base := filepath.Base(name)
	safe := unsafeChars.ReplaceAllString(base, "_")
	if len(safe) > 100 {
		safe = safe[:100]
	}
	return safe
}

func OutputFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultOutputName
	}
	name = SanitizeFilename(name)
	if name == "." || name == ".." {
		name = DefaultOutputName
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

func GenerateUUID() string {
	return uuid.New().String()
}
