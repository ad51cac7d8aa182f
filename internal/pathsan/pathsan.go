// Package pathsan sanitizes strings for use as filesystem path components.
package pathsan

import (
	"strings"
	"unicode/utf8"
)

// unsafe is the set of characters that cannot appear in a Windows or POSIX
// filename; stripping them up front means callers never have to special-case
// a platform.
const unsafe = `<>:"/\|?*`

// DefaultMaxBytes is the byte budget used when callers don't need a custom
// limit (titles embedded in a destination directory name).
const DefaultMaxBytes = 200

// Sanitize strips characters in the unsafe set from s and truncates the
// result so its UTF-8 encoding is at most maxBytes long. Truncation never
// splits a multi-byte rune, and trailing whitespace left by truncation is
// trimmed. maxBytes <= 0 is treated as DefaultMaxBytes.
func Sanitize(s string, maxBytes int) string {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(unsafe, r) {
			continue
		}
		b.WriteRune(r)
	}
	clean := b.String()

	if len(clean) <= maxBytes {
		return strings.TrimRight(clean, " \t\n\r")
	}
	return strings.TrimRight(truncateToBytes(clean, maxBytes), " \t\n\r")
}

// truncateToBytes returns the longest prefix of s whose UTF-8 encoding is
// at most maxBytes, never splitting a rune.
func truncateToBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
