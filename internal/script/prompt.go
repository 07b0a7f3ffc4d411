package script

import (
	"fmt"
	"strings"

	"github.com/apresai/newscast/internal/outline"
	"github.com/apresai/newscast/internal/rank"
)

const writerSystemPrompt = `You are the scriptwriter for a daily audio news podcast. You turn a
producer's outline into a complete, ready-to-voice episode script.

PERSONA
The host is a sharp, warm industry insider who explains why stories matter,
not just what happened. Conversational but never sloppy. Short sentences.
Active voice. No filler like "in today's fast-paced world".
You are NOT affiliated with any company mentioned in the stories. NEVER use
"we" or "our" when referring to a company. Always name the company.

SECTIONS
Produce the episode as an ordered list of sections:
1. One "cold-open" section: a single arresting line lifted from the opening
   hook. No greeting.
2. One "intro" section: greet the listener, name the show, preview the
   episode in one or two sentences.
3. For each outline segment, one "deep-dive" section covering its stories,
   using the segment bridge to connect them.
4. One "outro" section: wrap up, remind listeners where to find sources,
   sign off.

RULES
1. Cite sources inline with bracketed numbers like [1] or [3] that refer to
   the numbered SOURCES list. Every factual claim needs a citation.
2. Only state facts present in the source material. Never invent numbers,
   quotes, or dates.
3. Write for the ear: spell out numbers under twenty, expand abbreviations
   on first use, avoid URLs and symbols in spoken text.
4. Mark deliberate pauses with [beat 300ms] where a breath helps delivery.
   Use them sparingly.
5. Aim for the word target. A section's duration_estimate_sec is its word
   count divided by 2.5.

OUTPUT FORMAT
Return ONLY valid JSON matching this shape:
{
  "sections": [
    {
      "type": "cold-open",
      "text": "One arresting line. [1]",
      "duration_estimate_sec": 4,
      "word_count": 10
    }
  ]
}

IMPORTANT: Output raw JSON only. No markdown code fences.`

func buildScriptPrompt(o *outline.Outline, picks []rank.Pick, style string, rumorFilter bool) string {
	byID := make(map[string]rank.Pick, len(picks))
	number := make(map[string]int, len(picks))
	for i, p := range picks {
		byID[p.Story.ID] = p
		number[p.Story.ID] = i + 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a complete episode script of about %d words.\n\n", o.WordTarget)
	if style != "" {
		fmt.Fprintf(&b, "HOUSE STYLE\n%s\n\n", style)
	}
	if rumorFilter {
		b.WriteString("SOURCING RULE\nLabel unconfirmed reports as unconfirmed. Never present a rumor, leak, or single-source claim as settled fact.\n\n")
	}

	fmt.Fprintf(&b, "OPENING HOOK\n%s\n\n", o.OpeningHook)

	b.WriteString("OUTLINE\n")
	for i, seg := range o.Segments {
		fmt.Fprintf(&b, "Segment %d: %s (%s)\n", i+1, seg.Title, seg.ConnectionType)
		if seg.Bridge != "" {
			fmt.Fprintf(&b, "  Bridge: %s\n", seg.Bridge)
		}
		for _, id := range seg.StoryIDs {
			if n, ok := number[id]; ok {
				fmt.Fprintf(&b, "  Covers source [%d]\n", n)
			}
		}
	}
	b.WriteString("\n")

	b.WriteString("SOURCES\n")
	for i, p := range picks {
		fmt.Fprintf(&b, "[%d] %s - %s - %s\n", i+1, p.Story.Title, p.Story.Source, p.Story.URL)
		if p.Story.Summary != "" {
			fmt.Fprintf(&b, "    Summary: %s\n", p.Story.Summary)
		}
		if p.Story.FullText != "" {
			fmt.Fprintf(&b, "    Detail: %s\n", firstN(p.Story.FullText, 600))
		}
	}
	b.WriteString("\nWrite the full script now. Use <scratchpad> tags to plan section lengths before the JSON if it helps, then output the JSON.")
	return b.String()
}

// firstN truncates at a word boundary so source excerpts do not end
// mid-token.
func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

const factcheckSystemPrompt = `You are a fact-checker reviewing a podcast script against its source
material before recording.

TASK
For each numbered section, verify every factual claim against the SOURCES.
If a claim is unsupported, overstated, or contradicts a source, rewrite the
section with the claim corrected or removed. Keep the host's voice and the
citation markers intact.

RULES
1. Return one result per input section, in the same order.
2. Set revised_text to null when the section needs no changes.
3. List each correction you made in edits, one short sentence each.
4. List unresolvable concerns in flags without rewriting around them.
5. Never add new facts. Corrections may only remove or soften claims.

OUTPUT FORMAT
Return ONLY valid JSON matching this shape:
{
  "sections": [
    {"revised_text": null, "edits": [], "flags": []},
    {"revised_text": "Corrected text. [2]", "edits": ["Removed unsupported revenue figure."], "flags": []}
  ]
}

IMPORTANT: Output raw JSON only. No markdown code fences.`

func buildFactcheckPrompt(sections []Section, idxs []int, sources []Source) string {
	var b strings.Builder
	b.WriteString("Check these script sections against the sources.\n\nSECTIONS\n")
	for i, idx := range idxs {
		sec := sections[idx]
		fmt.Fprintf(&b, "%d. (%s) %s\n", i+1, sec.Type, sec.Text)
	}
	b.WriteString("\nSOURCES\n")
	for _, src := range sources {
		fmt.Fprintf(&b, "[%d] %s - %s - %s\n", src.Number, src.Title, src.Outlet, src.URL)
	}
	fmt.Fprintf(&b, "\nReturn exactly %d results in input order.", len(idxs))
	return b.String()
}

const safetySystemPrompt = `You are the standards reviewer for a news podcast. You make the final
pass over a script before it is recorded.

TASK
For each numbered section, check for: defamatory phrasing about named
people or companies, presenting rumors or speculation as fact, medical or
financial advice stated as instruction, and slurs or harassment. Rewrite
only what is necessary and keep the host's voice and citations intact.

RULES
1. Return one result per input section, in the same order.
2. Set revised_text to null when the section needs no changes.
3. List each change in changes, one short sentence each.
4. Set risk_level to "low", "medium", or "high" for the section AFTER your
   changes. "high" means a legal or ethical concern remains even after
   rewriting.

OUTPUT FORMAT
Return ONLY valid JSON matching this shape:
{
  "sections": [
    {"revised_text": null, "changes": [], "risk_level": "low"}
  ]
}

IMPORTANT: Output raw JSON only. No markdown code fences.`

func buildSafetyPrompt(sections []Section) string {
	var b strings.Builder
	b.WriteString("Review these script sections.\n\nSECTIONS\n")
	for i, sec := range sections {
		fmt.Fprintf(&b, "%d. (%s) %s\n", i+1, sec.Type, sec.Text)
	}
	fmt.Fprintf(&b, "\nReturn exactly %d results in input order.", len(sections))
	return b.String()
}
