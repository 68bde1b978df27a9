// Package htmlsanitize cleans user-authored forum content with bluemonday.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcOnce sync.Once
	ugc     *bluemonday.Policy
)

var strict = bluemonday.StrictPolicy()

func policy() *bluemonday.Policy {
	ugcOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowElements("u", "s", "mark", "sub", "sup")
		p.AllowAttrs("class").OnElements("table", "thead", "tbody", "tr", "th", "td", "code", "pre")
		p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
		p.RequireNoFollowOnLinks(true)
		ugc = p
	})
	return ugc
}

// Sanitize strips scripts, event handlers, unsafe URLs and unknown
// elements, keeping ordinary formatting.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return policy().Sanitize(s)
}

// StripTags removes all markup. Used for titles and messages.
func StripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether s contains no markup.
func IsPlainText(s string) bool {
	return !(strings.Contains(s, "<") && strings.Contains(s, ">"))
}

// PlainTextToHTML escapes s and turns newlines into <br> inside one paragraph.
func PlainTextToHTML(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
	return "<p>" + strings.ReplaceAll(html.EscapeString(s), "\n", "<br>") + "</p>"
}

// PrepareContent converts plain text to HTML and sanitises anything else,
// so stored post and comment bodies are always safe HTML.
func PrepareContent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if IsPlainText(s) {
		return PlainTextToHTML(s)
	}
	return Sanitize(s)
}
