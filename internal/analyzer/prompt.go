package analyzer

import "strings"

// BuildPrompt assembles the analysis prompt: the user's health context,
// the entry text, and a JSON-only output instruction.
func BuildPrompt(content, healthContext string) string {
	var sb strings.Builder

	sb.WriteString("You are reviewing one journal entry in the context of the author's health profile. Return JSON only.\n\n")

	if hc := strings.TrimSpace(healthContext); hc != "" {
		sb.WriteString("Health profile context:\n")
		sb.WriteString(hc)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Journal entry:\n")
	sb.WriteString(content)
	sb.WriteString("\n\n")

	sb.WriteString(`Return a JSON object with this structure:
{
  "message": "one short paragraph reflecting on the entry",
  "tags": ["tag-name"],
  "observations": ["factual observation grounded in the entry"],
  "questions": ["gentle follow-up question for the author"],
  "potentialPathways": ["possible connection to the health profile worth tracking"]
}

Rules:
- Use lowercase, hyphenated tag names (e.g., "sleep-quality" not "Sleep Quality")
- Suggest 2-5 relevant tags
- Never diagnose; observations describe, pathways speculate cautiously
- Keep every list item to a single sentence

Return ONLY the JSON, no other text.`)

	return sb.String()
}
