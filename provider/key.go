package provider

import (
	"fmt"
	"strings"
	"unicode"
)

// BuildCacheKey joins the provider service name and parts into a cache key.
// Each part is normalized so that queries differing only in case, spacing or
// punctuation map to the same key. The key starts with the service name, so
// that a cache Clear filtered by service removes it.
func (c *Client) BuildCacheKey(parts ...any) string {
	return BuildCacheKey(c.service, parts...)
}

// BuildCacheKey is the cache key builder used by Client.
func BuildCacheKey(service string, parts ...any) string {
	tokens := make([]string, 0, len(parts)+1)
	tokens = append(tokens, NormalizeToken(service))
	for _, p := range parts {
		tokens = append(tokens, NormalizeToken(fmt.Sprint(p)))
	}
	return strings.Join(tokens, "_")
}

// NormalizeToken lower-cases s and replaces each run of characters that are
// not letters or digits by a single hyphen. Leading and trailing separators
// are dropped. Underscores never appear in a token, so a free-text part cannot
// look like a provider discriminator.
func NormalizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && b.Len() != 0 {
				b.WriteByte('-')
			}
			sep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		sep = true
	}
	return b.String()
}
