package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer cleans community-submitted text before it is stored.
type ContentSanitizer interface {
	// SanitizeHTML keeps the markup a blog post may carry.
	SanitizeHTML(raw string) string
	// StripTags reduces input to plain text.
	StripTags(raw string) string
}

type contentSanitizer struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

func NewContentSanitizer() ContentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "hr", "h2", "h3", "h4",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i", "u",
	)
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &contentSanitizer{
		rich:  p,
		plain: bluemonday.StrictPolicy(),
	}
}

func (s *contentSanitizer) SanitizeHTML(raw string) string {
	return strings.TrimSpace(s.rich.Sanitize(raw))
}

func (s *contentSanitizer) StripTags(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(raw)))
}
