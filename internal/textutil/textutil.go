// Package textutil holds small string helpers used by templates, exports and
// attachment paths.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlugRe     = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)
	texSpecialsRe = regexp.MustCompile(`([&%|{}~$\[\]])`)
)

// Slugify converts text to a lowercase ASCII string safe for URLs and file names.
// Accents are decomposed and dropped, everything but letters, digits, "_" and "-"
// is removed, and doubled separators are collapsed.
func Slugify(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	ascii, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		ascii = strings.ToLower(text)
	}
	s := nonSlugRe.ReplaceAllString(ascii, "")
	s = strings.ReplaceAll(s, "__", "_")
	return strings.ReplaceAll(s, "--", "-")
}

// TeXQuote escapes characters that are special in TeX: & % | { } ~ $ [ ].
func TeXQuote(s string) string {
	return texSpecialsRe.ReplaceAllString(s, `\${1}{}`)
}

// TeXLines turns line breaks into \crlf commands.
func TeXLines(s string) string {
	return strings.ReplaceAll(s, "\n", "\\crlf\n")
}
