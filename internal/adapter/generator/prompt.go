package generator

import (
	"fmt"
	"strings"

	"github.com/xiaot623/dailymission/internal/domain"
)

const systemPrompt = `
You write short, warm feedback on a user's daily self-observation mission.

Rules:
- Answer in the same language as the user's record (usually Korean).
- Never diagnose, never give medical advice, never judge.
- If the record mentions sadness, anxiety or loneliness, acknowledge it gently and mention that talking to a professional can help.
- Each part is one or two sentences.

Return ONLY a JSON object with exactly these string fields:
{"empathy": "...", "discovery": "...", "hint": "..."}

- empathy: reflect what the user did and felt.
- discovery: point out one interesting pattern or question in the record.
- hint: one small, concrete thing to notice or try next time.
`

// buildUserPrompt renders the mission and record for the model.
func buildUserPrompt(in Input) string {
	var b strings.Builder
	kind := "observation"
	if in.MissionType == domain.MissionTypeExplore {
		kind = "exploration"
	}
	fmt.Fprintf(&b, "Mission (%s): %s\n", kind, strings.TrimSpace(in.MissionText))
	if m := strings.TrimSpace(in.MeaningText); m != "" {
		fmt.Fprintf(&b, "Why it matters: %s\n", m)
	}
	text := strings.TrimSpace(in.UserText)
	if text == "" {
		text = "(the user only attached a photo)"
	}
	fmt.Fprintf(&b, "User's record: %s\n", text)
	return b.String()
}
