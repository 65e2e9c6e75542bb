package logger

import (
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

// sensitiveDataPatterns match credentials embedded in free-form strings
// such as DSNs, broker URLs and authorization headers.
var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((?:api[_-]?key|token|secret|passw(?:or)?d)[\s:=]+)([^;,\s&]{3,})`),
	// user:password@ in DSNs and broker URLs
	regexp.MustCompile(`([a-zA-Z0-9_.\-]+:)([^@\s/]+)(@)`),
}

// sensitiveKeywords mark field keys whose string values are always redacted.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "credential", "token", "api_key",
	"apikey", "authorization", "cookie", "dsn",
}

// IsSensitiveKey reports whether a field key names sensitive data.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}

// RedactSensitiveData replaces credentials in input with [REDACTED].
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}

	for i, pattern := range sensitiveDataPatterns {
		if i == len(sensitiveDataPatterns)-1 {
			input = pattern.ReplaceAllString(input, "${1}"+redactedValue+"${3}")
			continue
		}
		input = pattern.ReplaceAllString(input, "${1}"+redactedValue)
	}

	return input
}
