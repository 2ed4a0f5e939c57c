package errors

import (
	"regexp"
	"strings"
	"unicode"
)

const maxKeyLength = 512

// ValidateKey validates a cache key.
//
// The validation rules are intentionally conservative:
//   - No empty keys
//   - No control characters or null bytes
//   - Maximum length of 512 bytes
func ValidateKey(key string) error {
	if key == "" {
		return New(ErrCodeInvalidKey, "cache key cannot be empty")
	}

	if len(key) > maxKeyLength {
		return New(ErrCodeInvalidKey, "cache key too long (max %d bytes)", maxKeyLength)
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidKey, "cache key contains invalid control characters")
		}
	}

	return nil
}

// tableNameRegex matches table and view names exposed by the backend.
var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTable validates a table name before it is placed in a request path.
// It rejects names that could be used for path traversal or injection.
func ValidateTable(name string) error {
	if name == "" {
		return New(ErrCodeInvalidTable, "table name cannot be empty")
	}

	if len(name) > 63 {
		return New(ErrCodeInvalidTable, "table name too long (max 63 characters)")
	}

	if !tableNameRegex.MatchString(name) {
		return New(ErrCodeInvalidTable, "invalid table name: %q", name)
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
