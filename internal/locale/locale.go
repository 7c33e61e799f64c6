// Package locale normalizes the site's language codes.
package locale

import "strings"

// Supported locales. English is the fallback.
const (
	English    = "en"
	Portuguese = "pt"
	Spanish    = "es"
)

// Normalize maps tags like "pt-BR" or "ES" onto a supported locale,
// falling back to English.
func Normalize(raw string) string {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	switch tag {
	case Portuguese, Spanish, English:
		return tag
	}
	return English
}
