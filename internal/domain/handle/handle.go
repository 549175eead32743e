// Package handle canonicalizes user handles so the same person typed in
// different ways ("@Éléa ", "elea", " ELEA") resolves to one key.
package handle

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// invisible matches zero-width and other format runes (ZWSP, ZWJ, BOM, soft hyphen...).
var invisible = runes.In(unicode.Cf)

// Normalize returns the matching key for a raw handle. It is idempotent, so
// keys can be normalized again safely. The result may be empty for degenerate
// input; callers must discard empty keys.
func Normalize(raw string) string {
	s := strings.Map(func(r rune) rune {
		if invisible.Contains(r) {
			return -1
		}
		return r
	}, raw)

	s = stripDiacritics(strings.ToLower(s))
	s = strings.TrimLeftFunc(s, func(r rune) bool { return r == '@' || unicode.IsSpace(r) })
	return strings.Join(strings.Fields(s), " ")
}

// stripDiacritics decomposes s and drops combining marks.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Equal reports whether two raw handles share the same non-empty key.
func Equal(a, b string) bool {
	ka := Normalize(a)
	return ka != "" && ka == Normalize(b)
}
