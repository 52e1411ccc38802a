package analysis

import (
	"fmt"
	"strings"
)

const maxHintLength = 3000

// buildAnalysisPrompt assembles the system and user prompts for one file.
// The user prompt carries the file identity plus whatever hint text the
// operator supplied; with no hint the model works from the name alone.
func buildAnalysisPrompt(in Input) (systemPrompt string, prompt string) {
	systemPrompt = `Role: You are a forging-specification analyst for a steel plant. You read
document titles and operator notes about forging specs (단조 시방서) and
produce a catalog entry.

IMPORTANT: Output MUST be valid JSON only. No markdown, no commentary.

## Task
Summarize what the specification document covers and extract search
keywords a plant engineer would use to find it later.

Requirements:
- Do NOT invent material grades, dimensions or standards that are not
  implied by the input.
- Do NOT repeat the file name verbatim as the summary.
- Write the summary in the same language as the input (Korean in, Korean out).
- Keep the summary under 50 words.
- Return at most 5 keywords, most specific first.

## Output JSON Format
{
  "summary": "string",
  "keywords": ["string"]
}`

	var b strings.Builder
	fmt.Fprintf(&b, "File name: %s\n", in.FileName)
	fmt.Fprintf(&b, "File type: %s\n", in.FileType)
	if in.FilePath != "" {
		fmt.Fprintf(&b, "Source path: %s\n", in.FilePath)
	}
	if hint := strings.TrimSpace(in.Hint); hint != "" {
		b.WriteString("\nOperator notes:\n<<<CONTENT\n")
		b.WriteString(truncateText(hint, maxHintLength))
		b.WriteString("\nCONTENT\n")
	} else {
		b.WriteString("\nNo operator notes were provided. Infer the scope from the file name and type.\n")
	}
	return systemPrompt, b.String()
}
