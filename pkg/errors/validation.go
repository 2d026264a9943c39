package errors

import (
	"math"
	"strings"
	"unicode"
)

// ValidateZoom checks that a zoom factor is a finite, positive number.
func ValidateZoom(zoom float64) error {
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return New(ErrCodeInvalidRequest, "zoom must be a finite number")
	}
	if zoom <= 0 {
		return New(ErrCodeInvalidRequest, "zoom must be positive, got %v", zoom)
	}
	return nil
}

// ValidatePageSelector checks a page selector. all is the sentinel that
// selects every page; any other value must be a zero-based index.
func ValidatePageSelector(page, all int) error {
	if page == all {
		return nil
	}
	if page < 0 {
		return New(ErrCodeInvalidRequest, "page selector must be >= 0, got %d", page)
	}
	return nil
}

// ValidateBaseDir validates a base directory used to resolve includes.
// An empty base dir is allowed and means "the working directory".
//
// Validation rules:
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidateBaseDir(dir string) error {
	const maxPathLength = 4096
	if len(dir) > maxPathLength {
		return New(ErrCodeInvalidRequest, "base dir too long (max %d characters)", maxPathLength)
	}
	for _, r := range dir {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidRequest, "base dir contains invalid characters")
		}
	}
	return nil
}

// ValidateOutputName validates a filename hint before it is used to write
// a page image. It must be a simple basename without path components.
func ValidateOutputName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidRequest, "output name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return New(ErrCodeInvalidRequest, "output name cannot contain path separators")
	}
	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidRequest, "output name cannot contain path traversal sequences (..)")
	}
	return nil
}
