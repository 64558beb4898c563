// i18n.go

// Accept-Language negotiation and message lookup.
package i18n

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Supported lists the languages with a full catalog. The first entry is the fallback.
var Supported = []language.Tag{language.English, language.Japanese}

var (
	matcher = language.NewMatcher(Supported)
	cat     = buildCatalog()
)

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range ja {
		// Keys are the English text, so English needs no entries of its own.
		if err := b.SetString(language.Japanese, key, text); err != nil {
			panic("i18n: bad catalog entry " + key + ": " + err.Error())
		}
	}
	return b
}

// Localizer renders catalog messages in one language.
type Localizer struct {
	Tag     language.Tag
	printer *message.Printer
}

// New returns a Localizer for tag. Unsupported tags resolve to English.
func New(tag language.Tag) Localizer {
	_, idx, _ := matcher.Match(tag)
	base := Supported[idx]
	return Localizer{Tag: base, printer: message.NewPrinter(base, message.Catalog(cat))}
}

// Negotiate picks the best supported language for an Accept-Language header value.
// Empty or unparseable headers yield English.
func Negotiate(header string) language.Tag {
	if header == "" {
		return Supported[0]
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return Supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return Supported[idx]
}

// FromRequest returns the Localizer matching r's Accept-Language header.
func FromRequest(r *http.Request) Localizer {
	return New(Negotiate(r.Header.Get("Accept-Language")))
}

// T translates key. Keys missing from the catalog are returned unchanged.
func (l Localizer) T(key string) string {
	if l.printer == nil {
		return key
	}
	return l.printer.Sprintf(message.Key(key, key))
}

// Fields translates every message in a field error map, returning a new map.
func (l Localizer) Fields(fields map[string][]string) map[string][]string {
	if fields == nil {
		return nil
	}
	out := make(map[string][]string, len(fields))
	for field, msgs := range fields {
		translated := make([]string, len(msgs))
		for i, m := range msgs {
			translated[i] = l.T(m)
		}
		out[field] = translated
	}
	return out
}
