// Package sanitize converts case-provided rich text into normalized plain text.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict strips every tag and attribute, leaving text content only.
var strict = bluemonday.StrictPolicy()

var (
	brRe         = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockOpenRe  = regexp.MustCompile(`(?i)<(?:p|div|li|h[1-6]|section|article|table|tr|td|blockquote|pre|ol|ul)\b[^>]*>`)
	blockCloseRe = regexp.MustCompile(`(?i)</(?:p|div|li|h[1-6]|section|article|table|tr|td|blockquote|pre|ol|ul)>`)

	hspaceRe      = regexp.MustCompile(`[^\S\r\n]+`)
	spaceEdgeRe   = regexp.MustCompile(` ?\n ?`)
	newlineRunsRe = regexp.MustCompile(`\n{2,}`)
)

// Text strips markup from s and normalizes whitespace. Block-level tags are
// mapped to newlines before stripping so sibling blocks do not concatenate
// into one word. Total and deterministic: empty input yields empty output,
// and the result is a fixed point (Text(Text(s)) == Text(s)).
func Text(s string) string {
	if s == "" {
		return ""
	}

	withNewlines := brRe.ReplaceAllString(s, "\n")
	withNewlines = blockOpenRe.ReplaceAllString(withNewlines, "\n")
	withNewlines = blockCloseRe.ReplaceAllString(withNewlines, "\n")

	// Entities stay escaped: unescaping could reintroduce text that looks
	// like a tag, and a second pass would then strip it.
	plain := strict.Sanitize(withNewlines)

	plain = hspaceRe.ReplaceAllString(plain, " ")
	plain = spaceEdgeRe.ReplaceAllString(plain, "\n")
	plain = newlineRunsRe.ReplaceAllString(plain, "\n")
	return strings.TrimSpace(plain)
}
