package storage

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxIdentLen keeps identifiers inside the tightest backend limit
// (Postgres truncates at 63 bytes).
const maxIdentLen = 63

// foldDiacritics strips combining marks so accented sheet names survive
// sanitization instead of collapsing ("Übersicht" -> "Ubersicht").
var foldDiacritics = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeIdentifier converts an arbitrary sheet or header string into a
// safe, lowercase SQL identifier: diacritics folded, separators collapsed to
// single underscores, anything outside [a-z0-9_] dropped, length capped.
// A name that sanitizes to nothing becomes "sheet"; a leading digit gets a
// "t_" prefix so the identifier never needs quoting.
func SanitizeIdentifier(s string) string {
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "sheet"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "t_" + out
	}
	return truncateIdent(out)
}

// truncateIdent enforces maxIdentLen without splitting a UTF-8 sequence.
func truncateIdent(s string) string {
	return clipIdent(s, maxIdentLen)
}

func clipIdent(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	b := []byte(s)
	cut := limit
	for cut > 0 && !utf8.Valid(b[:cut]) {
		cut--
	}
	if cut <= 0 {
		return s[:limit]
	}
	return string(b[:cut])
}

// UniqueIdentifiers resolves collisions among already-sanitized identifiers
// by suffixing repeats with _2, _3, ... in order. The first occurrence keeps
// the bare name. Suffixed names stay within maxIdentLen: the stem is
// shortened to make room, otherwise Postgres would truncate the result back
// to the colliding prefix at the server.
func UniqueIdentifiers(names []string) []string {
	seen := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		if _, dup := seen[n]; !dup {
			seen[n] = 1
			out[i] = n
			continue
		}
		for {
			seen[n]++
			suffix := fmt.Sprintf("_%d", seen[n])
			stem := strings.TrimRight(clipIdent(n, maxIdentLen-len(suffix)), "_")
			candidate := stem + suffix
			if _, taken := seen[candidate]; !taken {
				seen[candidate] = 1
				out[i] = candidate
				break
			}
		}
	}
	return out
}
