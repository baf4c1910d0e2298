package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidatePackageName validates a component, library or meta package name.
// It rejects names that could escape a per-job working directory or break
// the Debian package naming scheme.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters or whitespace
//   - No path traversal sequences (.., //, etc.)
//   - Maximum length of 256 characters
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidPackage, "package name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidPackage, "package name %q contains invalid characters", name)
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidPackage, "package name contains invalid characters: %q", pattern)
		}
	}

	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return New(ErrCodeInvalidPackage, "package name %q cannot start or end with /", name)
	}

	return nil
}

// releaseNameRegex matches release names such as "master-20.06" or "bionic".
var releaseNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9.+-]*$`)

// ValidateReleaseName validates a release name. Release names are embedded
// in Debian package names, so they follow the Debian package name alphabet.
func ValidateReleaseName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidRelease, "release name cannot be empty")
	}
	if !releaseNameRegex.MatchString(name) {
		return New(ErrCodeInvalidRelease, "invalid release name: %q", name)
	}
	return nil
}

// archRegex matches Debian architecture names (amd64, arm64, armhf, i386...).
var archRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateArch validates a Debian architecture name.
func ValidateArch(arch string) error {
	if !archRegex.MatchString(arch) {
		return New(ErrCodeInvalidRelease, "invalid architecture: %q", arch)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
