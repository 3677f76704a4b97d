package log

import (
	"strings"
)

// sensitiveKeywords are matched case-insensitively against field keys.
var sensitiveKeywords = []string{
	"password", "passwd", "secret",
	"api_key", "apikey", "api-key",
	"token", "authorization", "credential",
	"access_key", "secret_key", "private_key",
}

// SanitizeField masks the value when the key names a secret.
// Identity keys (which may embed an API key) keep only their prefix.
func SanitizeField(key, value string) string {
	if value == "" {
		return value
	}

	lowerKey := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return maskSecret(value)
		}
	}

	if lowerKey == "identity" && strings.HasPrefix(value, "key:") {
		// key:<api key>:<operation>
		parts := strings.SplitN(value, ":", 3)
		if len(parts) >= 2 {
			parts[1] = maskSecret(parts[1])
			return strings.Join(parts, ":")
		}
	}

	return value
}

// maskSecret keeps the first and last four characters of long values.
func maskSecret(value string) string {
	if len(value) <= 8 {
		if len(value) <= 2 {
			return strings.Repeat("*", len(value))
		}
		return string(value[0]) + strings.Repeat("*", len(value)-2) + string(value[len(value)-1])
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}
