// Package checksum computes content digests used for change detection and
// HTTP validators.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag quotes a digest for use as an HTTP ETag header.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// ParseETag returns the digest carried by an If-Match header value. Weak
// prefixes and surrounding quotes are dropped.
func ParseETag(header string) string {
	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(header, "W/")
	return strings.Trim(header, `"`)
}
