package connectors

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CleanText normalisiert Unicode (NFC) und fasst Leerraum zusammen. MARC-typische
// Satzzeichen am Feldende (" /", " :", " ;") werden entfernt.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = norm.NFC.String(s)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimRight(s, "/:;,"))
}

// FirstNonEmpty gibt den ersten nicht-leeren Wert zurück.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = CleanText(v); v != "" {
			return v
		}
	}
	return ""
}

// JoinNonEmpty verbindet alle nicht-leeren Werte mit sep.
func JoinNonEmpty(sep string, values ...string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = CleanText(v); v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, sep)
}

// YearOf kürzt ein Datum auf die ersten vier Zeichen ("2021-05-01" -> "2021").
func YearOf(date string) string {
	date = strings.TrimSpace(date)
	if len(date) > 4 {
		return date[:4]
	}
	return date
}

// OrDefault gibt def zurück, wenn s leer ist.
func OrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
