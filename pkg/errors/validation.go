package errors

import (
	"strings"
	"unicode"
)

// MaxGraphCount is the sanity bound on a container's declared graph count.
// Larger values almost always mean the reader is configured with the wrong
// byte order or pointer width.
const MaxGraphCount = 10_000_000

// configHint is appended to messages for failures that typically stem from
// a byte order or pointer width mismatch.
const configHint = "check byte order / pointer width"

// ValidateGraphCount checks the leading graph count of a container.
func ValidateGraphCount(n int32) error {
	if n < 0 || n > MaxGraphCount {
		return New(ErrCodeCorruptContainer, "unreasonable graph count %d (allowed 0..%d); %s", n, MaxGraphCount, configHint)
	}
	return nil
}

// ValidatePointerWidth checks that w is a supported size_t width in bytes.
func ValidatePointerWidth(w int) error {
	if w != 4 && w != 8 {
		return New(ErrCodeInvalidConfig, "pointer width must be 4 or 8, got %d", w)
	}
	return nil
}

// ValidateEditPathName checks that a graph name carries the three trailing
// underscore-delimited tokens (start, end, step) of an edit path.
func ValidateEditPathName(name string) error {
	if n := strings.Count(name, "_") + 1; n < 3 {
		return New(ErrCodeCorruptContainer, "graph name %q has %d underscore-delimited tokens, need at least 3; %s", name, n, configHint)
	}
	return nil
}

// ValidateSourcePath validates a BGF source path supplied by a user.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidateSourcePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidConfig, "source path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidConfig, "source path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidConfig, "source path contains invalid characters")
		}
	}

	return nil
}
