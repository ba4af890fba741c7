package matchpoints

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes compatibility characters and drops combining marks.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize trims, case-folds, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(foldDiacritics(s))), " ")
}

// NormalizeText is Normalize with punctuation treated as whitespace. Titles
// and imprints are compared this way.
func NormalizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, s)
	return Normalize(s)
}

// NormalizeLCCN removes blanks and anything after a slash.
func NormalizeLCCN(s string) string {
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	return strings.ReplaceAll(Normalize(s), " ", "")
}

// NormalizeISBN keeps the leading run of ISBN characters, hyphens dropped.
func NormalizeISBN(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		case r == '-':
		default:
			return b.String()
		}
	}
	return b.String()
}

// NormalizeISSN drops the hyphen and upper-cases the check digit.
func NormalizeISSN(s string) string {
	s = strings.ToUpper(strings.ReplaceAll(Normalize(s), "-", ""))
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	return s
}

// NormalizeSystemControlNumber returns (prefix)value with the prefix
// case-folded and the value's leading zeros removed. Values without a
// parenthesized prefix cannot be compared and yield "".
func NormalizeSystemControlNumber(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") {
		return ""
	}
	end := strings.Index(s, ")")
	if end < 2 {
		return ""
	}
	prefix := Normalize(s[1:end])
	value := strings.ReplaceAll(Normalize(s[end+1:]), " ", "")
	if prefix == "ocolc" {
		value = strings.TrimLeft(value, "ocmn")
	}
	value = strings.TrimLeft(value, "0")
	if value == "" {
		return ""
	}
	return "(" + prefix + ")" + value
}
