// Package validation provides centralized input validation for upload batches.
//
// Descriptors are validated before any network call so malformed input is
// rejected immediately, without touching the remote service.
package validation

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/SinghAman21/silentparcel-uploader/errors"
	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

// maxNameLength bounds file names accepted by the remote store.
const maxNameLength = 1024

// ValidateBatch validates a caller-supplied file batch. It returns
// ErrValidation on an empty batch or on the first invalid descriptor.
func ValidateBatch(files []parceltypes.FileDescriptor) error {
	if len(files) == 0 {
		return errors.NewError("validateBatch", errors.ErrValidation).
			WithMessage("file batch cannot be empty")
	}
	for _, f := range files {
		if err := ValidateDescriptor(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDescriptor validates a single file descriptor.
func ValidateDescriptor(f parceltypes.FileDescriptor) error {
	if f.Name == "" {
		return errors.NewError("validateDescriptor", errors.ErrValidation).
			WithMessage("file name cannot be empty")
	}
	if len(f.Name) > maxNameLength {
		return errors.NewError("validateDescriptor", errors.ErrValidation).
			WithFile(f.Name).
			WithMessage("file name too long")
	}
	if hasControlCharacters(f.Name) {
		return errors.NewError("validateDescriptor", errors.ErrValidation).
			WithFile(f.Name).
			WithMessage("file name cannot contain control characters")
	}
	if f.Size < 0 {
		return errors.NewError("validateDescriptor", errors.ErrValidation).
			WithFile(f.Name).
			WithMessage("file size cannot be negative")
	}
	if f.RelativePath != "" && hasPathTraversal(f.RelativePath) {
		return errors.NewError("validateDescriptor", errors.ErrValidation).
			WithFile(f.Name).
			WithMessage("relative path cannot contain traversal sequences")
	}
	return nil
}

// hasPathTraversal checks for traversal attempts in logical batch paths.
func hasPathTraversal(path string) bool {
	if strings.Contains(path, "..") {
		return true
	}

	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") {
		return true
	}
	if strings.HasPrefix(cleaned, "/") {
		return true
	}
	// Windows-style absolute paths
	if len(cleaned) >= 3 && cleaned[1] == ':' && (cleaned[2] == '\\' || cleaned[2] == '/') {
		return true
	}
	return false
}

// hasControlCharacters checks for control characters in a name.
func hasControlCharacters(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
