package export

import (
	"html"
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Fill substitutes {{key}} tokens in body with values. Unknown tokens are left
// verbatim. When escapeHTML is set every substituted value is HTML-escaped.
func Fill(body string, values map[string]string, escapeHTML bool) string {
	return placeholderPattern.ReplaceAllStringFunc(body, func(token string) string {
		key := placeholderPattern.FindStringSubmatch(token)[1]
		value, ok := values[key]
		if !ok {
			return token
		}
		if escapeHTML {
			return html.EscapeString(value)
		}
		return value
	})
}

// Placeholders lists the distinct keys referenced by body in order of appearance.
func Placeholders(body string) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		if _, ok := seen[match[1]]; ok {
			continue
		}
		seen[match[1]] = struct{}{}
		keys = append(keys, match[1])
	}
	return keys
}
