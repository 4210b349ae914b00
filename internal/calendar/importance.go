package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"glowgo/internal/llm"
)

// ScoredEvent is an event rated by the model for how much appearance matters.
type ScoredEvent struct {
	Name            string `json:"name"`
	ImportanceScore int    `json:"importance_score"`
	Reason          string `json:"reason"`
}

// DetectImportantEvents asks the model to rate which upcoming events are worth
// booking a beauty appointment ahead of. Keyword matching stays the fallback
// when no generator is configured or the response cannot be parsed.
func DetectImportantEvents(ctx context.Context, gen llm.TextGenerator, events []Event) ([]ScoredEvent, error) {
	if gen == nil || len(events) == 0 {
		return nil, nil
	}

	limit := len(events)
	if limit > 10 {
		limit = 10
	}
	var lines []string
	for _, e := range events[:limit] {
		lines = append(lines, fmt.Sprintf("- %s on %s at %s",
			e.Name, e.Start.Format("Monday, January 2"), e.Start.Format("3:04 PM")))
	}

	prompt := fmt.Sprintf(`Analyze these upcoming calendar events and identify which ones are "important appearance events"
where the person would want to look their best (get a haircut, nails done, etc. beforehand).

Events:
%s

For each important event, return a JSON array with objects containing:
- "name": the event name
- "importance_score": 1-10 (10 = most important to look good)
- "reason": why this event matters for appearance

Consider events like:
- Weddings, parties, galas (9-10)
- Client meetings, interviews, presentations (8-9)
- Dates, romantic dinners (8-9)
- Photo shoots, videos, performances (9-10)
- Family gatherings, reunions (7-8)
- Regular work meetings (5-6)

Return ONLY the JSON array, no other text. If no important events, return [].`,
		strings.Join(lines, "\n"))

	resp, err := gen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("rate calendar events: %w", err)
	}

	content := strings.TrimSpace(resp.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var scored []ScoredEvent
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &scored); err != nil {
		return nil, fmt.Errorf("parse event ratings: %w", err)
	}
	return scored, nil
}
