package environment

import (
	"strings"
	"unicode"
)

var sensitivePatterns = []string{
	"password", "passwd", "pwd", "secret", "token",
	"api_key", "apikey", "access_key", "private_key",
	"credential", "client_secret", "bearer", "jwt",
}

// LooksSensitive reports whether a descriptor entry appears to carry
// credential material, either by name or because the value has the shape
// of generated secret text
func LooksSensitive(name, value string) bool {
	nameLower := strings.ToLower(name)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(nameLower, pattern) {
			return true
		}
	}
	return looksGenerated(value)
}

func looksGenerated(value string) bool {
	if len(value) < 32 {
		return false
	}

	// JWT tokens (3 base64 parts separated by dots)
	if strings.Count(value, ".") == 2 && len(value) > 50 && !strings.ContainsAny(value, " /:") {
		return true
	}

	return isURLSafeBase64(value) && containsMixedCase(value) && hasHighEntropy(value)
}

func isURLSafeBase64(s string) bool {
	for _, r := range s {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

func hasHighEntropy(value string) bool {
	charCount := make(map[rune]int)
	for _, r := range value {
		charCount[r]++
	}
	// 43 random base64 characters give ~30 distinct symbols
	return float64(len(charCount))/float64(len(value)) > 0.5
}

func containsMixedCase(value string) bool {
	hasUpper := false
	hasLower := false
	for _, r := range value {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
		if hasUpper && hasLower {
			return true
		}
	}
	return false
}

// Redacted returns a copy of the descriptor with sensitive-looking values
// masked, for display
func (d Descriptor) Redacted() Descriptor {
	out := make(Descriptor, len(d))
	for key, value := range d {
		if LooksSensitive(key, value) {
			value = "********"
		}
		out[key] = value
	}
	return out
}
