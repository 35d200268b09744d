package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// slugRegex matches catalog slugs as the origin emits them
// (lowercase words joined by hyphens, digits allowed).
var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)

// ValidateSlug validates a category or product slug before it is
// interpolated into an origin URL path or query.
//
// The validation rules are intentionally conservative:
//   - No empty slugs
//   - Maximum length of 256 characters
//   - No control characters
//   - Lowercase alphanumerics separated by single hyphens or underscores
func ValidateSlug(slug string) error {
	if slug == "" {
		return New(ErrCodeInvalidSlug, "slug cannot be empty")
	}
	if len(slug) > 256 {
		return New(ErrCodeInvalidSlug, "slug too long (max 256 characters)")
	}
	for _, r := range slug {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidSlug, "slug contains invalid control characters")
		}
	}
	if !slugRegex.MatchString(slug) {
		return New(ErrCodeInvalidSlug, "invalid slug: %q", slug)
	}
	return nil
}

// ValidateFilename validates a snapshot filename for safety.
// It ensures the filename is a simple basename without path components,
// since it is joined onto the local cache directory and used as a remote key.
func ValidateFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidFilename, "filename cannot be empty")
	}
	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidFilename, "filename cannot contain path separators")
	}
	if strings.HasPrefix(filename, ".") {
		return New(ErrCodeInvalidFilename, "filename cannot be a hidden file")
	}
	for _, r := range filename {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidFilename, "filename contains invalid characters")
		}
	}
	return nil
}

// repoIDRegex matches "namespace/name" repository identifiers.
var repoIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*/[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateRepoID validates a shared dataset repository identifier
// ("namespace/name").
func ValidateRepoID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "repository id cannot be empty")
	}
	if strings.Contains(id, "..") {
		return New(ErrCodeInvalidInput, "repository id cannot contain path traversal sequences (..)")
	}
	if !repoIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid repository id: %q (want namespace/name)", id)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
