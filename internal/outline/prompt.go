package outline

import (
	"fmt"
	"strings"

	"github.com/apresai/newscast/internal/rank"
)

const systemPrompt = `You are the supervising producer of a daily tech and business news podcast. You turn a ranked story list into a tight episode outline.

RULES:
1. Group the stories into 2-4 thematic segments. Every story index must appear in at least one segment's refs.
2. connection_type must be exactly one of: cause-effect, common-theme, contrast, timeline, industry-impact.
3. bridge is one spoken sentence that hands the listener from this segment to the next. The last segment's bridge hands off to the outro.
4. opening_hook is a single arresting sentence for the cold open. Lead with the most consequential story. No greetings, no cliches.
5. Order segments by editorial weight, strongest material first.

OUTPUT FORMAT:
Return ONLY valid JSON matching this exact structure (no markdown fences, no extra text):
{
  "opening_hook": "One sentence that makes the listener stay",
  "segments": [
    {"title": "Segment title", "refs": [0, 2], "connection_type": "common-theme", "bridge": "One handoff sentence"}
  ]
}

IMPORTANT: Output raw JSON only. No markdown code fences. No text before or after the JSON.`

func buildUserPrompt(picks []rank.Pick, wordTarget int, style string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Plan today's episode from these %d stories. The finished script will target about %d words, so size segment depth accordingly.\n\n", len(picks), wordTarget)
	if style != "" {
		fmt.Fprintf(&sb, "HOUSE STYLE: %s\n\n", style)
	}

	sb.WriteString("STORIES (zero-based index, sorted by editorial priority):\n")
	for i, p := range picks {
		fmt.Fprintf(&sb, "%d. [%s] %s (%s)\n   %s\n", i, p.Story.Topic, p.Story.Title, p.Story.Source, p.Story.Summary)
	}

	sb.WriteString("\nGroup every story index into segments and return the outline JSON.")
	return sb.String()
}
