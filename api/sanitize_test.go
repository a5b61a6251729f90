package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizerStripsScripts(t *testing.T) {
	s := NewSanitizer()

	out := s.HTML(`<p onclick="x()">Hello <script>alert(1)</script><b>world</b></p>`)
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "onclick")
	assert.Contains(t, out, "<b>world</b>")
}

func TestSanitizerLinksGetNoFollow(t *testing.T) {
	out := NewSanitizer().HTML(`<a href="https://example.com">x</a>`)
	assert.Contains(t, out, "nofollow")
	assert.Contains(t, out, `target="_blank"`)
}

func TestSanitizerPreview(t *testing.T) {
	s := NewSanitizer()

	words := make([]string, 30)
	for i := range words {
		words[i] = "w"
	}
	long := "<p>" + strings.Join(words, " ") + "</p>"

	preview := s.Preview(long, 0)
	assert.True(t, strings.HasSuffix(preview, "..."))
	assert.Len(t, strings.Fields(strings.TrimSuffix(preview, "...")), PreviewWords)
	assert.NotContains(t, preview, "<p>")

	assert.Equal(t, "short text", s.Preview("<i>short</i> text", 5))
}
