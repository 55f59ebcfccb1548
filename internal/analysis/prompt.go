package analysis

import (
	"fmt"
	"strings"
)

// Tags is the closed vocabulary the model is asked to choose from
var Tags = []string{"plate", "signboard", "other"}

// BuildPrompt returns the fixed instruction sent with every image
func BuildPrompt() string {
	return fmt.Sprintf(`You are reviewing photos attached to business listings.

Look at the image and classify it.

INSTRUCTIONS:
1. "type": one of %s. Use a JSON list when more than one applies.
2. "short_description": at most 5 comma separated keywords.
3. "alt": a short alternative text for screen readers.
4. "verbose_description": a description of at most 25 words.

OUTPUT FORMAT:
Respond with ONLY a JSON object with exactly these four fields:

{
  "type": "plate",
  "short_description": "...",
  "alt": "...",
  "verbose_description": "..."
}`, quoteAll(Tags))
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, ", ")
}
