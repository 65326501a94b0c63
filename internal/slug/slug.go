// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package slug derives filesystem- and identifier-safe slugs from titles.
package slug

import "strings"

const maxLen = 80

// Make lowercases s, replaces runs of non-alphanumeric characters with a
// single hyphen, and trims the result to a bounded length. An input with no
// usable characters yields "untitled".
func Make(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if len(out) > maxLen {
		out = strings.TrimSuffix(out[:maxLen], "-")
	}
	if out == "" {
		return "untitled"
	}
	return out
}
