package utils

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
)

// CleanReasoning normalizes model reasoning text before it is stored or
// served: trims whitespace, unwraps an outer markdown code fence, and strips
// dangling fence markers when the result does not validate, so the output is
// plain renderable markdown.
func CleanReasoning(input string) string {
	cleaned := strings.TrimSpace(input)

	for _, fence := range []string{"```markdown", "```md", "```"} {
		if strings.HasPrefix(cleaned, fence) && strings.HasSuffix(cleaned, "```") && len(cleaned) > len(fence)+3 {
			cleaned = strings.TrimPrefix(cleaned, fence)
			cleaned = strings.TrimSuffix(cleaned, "```")
			cleaned = strings.TrimSpace(cleaned)
			break
		}
	}

	if !ValidMarkdown(cleaned) {
		// Truncated output often leaves a fence open; the marker is noise at
		// this point, the text inside it is not.
		cleaned = strings.TrimSpace(strings.ReplaceAll(cleaned, "```", ""))
	}

	return cleaned
}

// ValidMarkdown reports whether the input renders cleanly as markdown:
// goldmark accepts it and every code fence is closed. Goldmark itself is
// permissive, so the fence balance check does most of the rejecting.
func ValidMarkdown(input string) bool {
	if strings.Count(input, "```")%2 != 0 {
		return false
	}
	parser := goldmark.DefaultParser()
	doc := parser.Parse(text.NewReader([]byte(input)))
	return doc != nil
}
