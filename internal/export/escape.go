package export

import "strings"

// markupEscaper rewrites the five markup metacharacters to their
// entity equivalents. Record names and descriptions are free text, so
// every insertion into KML or HTML goes through this one replacer
// rather than per-exporter copies.
var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

// EscapeMarkup escapes free text for insertion into XML or HTML.
func EscapeMarkup(s string) string {
	return markupEscaper.Replace(s)
}
