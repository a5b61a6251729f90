package api

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// PreviewWords is how many words [Sanitizer.Preview] keeps.
const PreviewWords = 20

// Sanitizer cleans blog HTML before it is shown. Blog content is author
// supplied and must never reach a renderer unfiltered.
type Sanitizer struct {
	policy *bluemonday.Policy
	strip  *bluemonday.Policy
}

// NewSanitizer returns a Sanitizer with the user-generated-content policy.
func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &Sanitizer{
		policy: p,
		strip:  bluemonday.StrictPolicy(),
	}
}

// HTML returns content with unsafe markup removed.
func (s *Sanitizer) HTML(content string) string {
	return strings.TrimSpace(s.policy.Sanitize(content))
}

// Text returns content with all markup removed.
func (s *Sanitizer) Text(content string) string {
	return strings.TrimSpace(s.strip.Sanitize(content))
}

// Preview returns the first words of the plain text followed by an ellipsis.
func (s *Sanitizer) Preview(content string, words int) string {
	if words <= 0 {
		words = PreviewWords
	}
	fields := strings.Fields(s.Text(content))
	if len(fields) <= words {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:words], " ") + "..."
}
