// Package htmlsanitize turns catalog text into plain text before it is
// returned to clients.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every element; script and style bodies are dropped.
var strict = bluemonday.StrictPolicy()

// PlainText strips all markup from s and decodes entities, so the result is
// text to be escaped by whatever renders it.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
