package extract

import "fmt"

// DefaultRules is used when no detection rule is configured.
const DefaultRules = "Include ONLY items where the button text contains 'Ask' (case-insensitive)."

// BuildPrompt embeds rules verbatim into the fixed instruction template.
func BuildPrompt(rules string) string {
	return fmt.Sprintf(
		"Identify listing blocks in the image.\n"+
			"CRITICAL FILTERING RULES:\n"+
			"%s\n\n"+
			"For each matching block, extract:\n"+
			"1. The primary identifier text below the image (e.g., 'AID 649991 - Hinau' or '3x Puppies').\n"+
			"2. The exact button text at the bottom.\n"+
			"Return strictly a JSON list: [{\"id\": \"...\", \"status\": \"...\"}]",
		rules,
	)
}
