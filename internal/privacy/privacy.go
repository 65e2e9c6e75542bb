// Package privacy scrubs URLs and credentials from messages before they
// leave the process as telemetry.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern = regexp.MustCompile(`\b(?:https?|tcp|ssl|tls|mqtts?|wss?)://\S+`)

	// user:password@tcp(host:port)/db
	dsnPattern = regexp.MustCompile(`[^\s:/@()]+:[^\s@]*@tcp\([^)]*\)`)

	tokenPattern = regexp.MustCompile(`(?i)\b(token|password|passwd|secret|api[_-]?key)(\s*[=:]\s*|\s+)\S+`)

	hexPattern = regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`)
)

// ScrubMessage removes or anonymizes sensitive information from a message.
func ScrubMessage(message string) string {
	scrubbed := dsnPattern.ReplaceAllString(message, "[DSN]")
	scrubbed = urlPattern.ReplaceAllStringFunc(scrubbed, AnonymizeURL)
	scrubbed = tokenPattern.ReplaceAllString(scrubbed, "$1$2[TOKEN]")
	return hexPattern.ReplaceAllString(scrubbed, "[HEX]")
}

// AnonymizeURL converts a URL to a stable hash that keeps the scheme, host
// category, port and path shape but drops credentials and names.
func AnonymizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	var parts []string
	if parsedURL.Scheme != "" {
		parts = append(parts, parsedURL.Scheme)
	}
	if host := parsedURL.Hostname(); host != "" {
		parts = append(parts, categorizeHost(host))
	}
	if port := parsedURL.Port(); port != "" {
		parts = append(parts, "port-"+port)
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		parts = append(parts, anonymizePath(parsedURL.Path))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("url-%x", hash[:12])
}

func categorizeHost(host string) string {
	if host == "localhost" {
		return "localhost"
	}
	if ip := net.ParseIP(host); ip != nil {
		switch {
		case ip.IsLoopback():
			return "localhost"
		case ip.IsPrivate(), ip.IsLinkLocalUnicast():
			return "private-ip"
		default:
			return "public-ip"
		}
	}

	if i := strings.LastIndexByte(host, '.'); i >= 0 && i < len(host)-1 {
		return "domain-" + host[i+1:]
	}
	return "unknown-host"
}

// anonymizePath keeps the number of segments and numeric ids, hashing the rest.
func anonymizePath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}

	var segments []string
	for _, segment := range strings.Split(path, "/") {
		switch {
		case segment == "":
			continue
		case isNumeric(segment):
			segments = append(segments, "numeric")
		default:
			hash := sha256.Sum256([]byte(segment))
			segments = append(segments, fmt.Sprintf("seg-%x", hash[:4]))
		}
	}
	return strings.Join(segments, "/")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
