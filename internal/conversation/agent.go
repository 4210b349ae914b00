package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"glowgo/internal/llm"
	"glowgo/internal/logger"
	"glowgo/internal/matching"
	"glowgo/internal/metrics"
	"glowgo/internal/preference"
)

// Matcher is the slice of the matching pipeline the agent needs.
type Matcher interface {
	Match(ctx context.Context, req matching.Request) (*matching.Result, error)
}

// Agent turns raw user messages into preference updates and replies. The
// extraction itself is deterministic; the LLM only phrases follow-up
// questions, with a plain template as fallback when the model is down.
type Agent struct {
	sessions    *SessionRepository
	matcher     Matcher
	textGen     llm.TextGenerator
	metrics     *metrics.Store
	log         logger.Logger
	radiusMiles float64
}

func NewAgent(sessions *SessionRepository, matcher Matcher, textGen llm.TextGenerator, store *metrics.Store, log logger.Logger, radiusMiles float64) *Agent {
	return &Agent{
		sessions:    sessions,
		matcher:     matcher,
		textGen:     textGen,
		metrics:     store,
		log:         log,
		radiusMiles: radiusMiles,
	}
}

// Reply holds the agent's answer for one user turn.
type Reply struct {
	Text        string
	Ready       bool
	MatchResult *matching.Result
}

// HandleMessage processes one user turn: parse, merge, decide whether to ask
// another question or run the match.
func (a *Agent) HandleMessage(ctx context.Context, userID, message string) (*Reply, error) {
	session, err := a.sessions.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session, err = a.sessions.Create(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	if err := a.sessions.AppendMessage(ctx, session.ID, "user", message); err != nil {
		return nil, err
	}

	update := preference.ExtractTurn(message, time.Now())
	session.Pref.Merge(update)

	readiness := preference.CheckReadiness(session.Pref)
	a.log.Debug("turn processed", map[string]interface{}{
		"session_id":   session.ID,
		"ready":        readiness.Ready,
		"completeness": readiness.Completeness,
	})

	var reply Reply
	if readiness.Ready {
		session.Status = StatusReady
		result, err := a.matcher.Match(ctx, matching.Request{
			Pref:        session.Pref,
			RadiusMiles: a.radiusMiles,
		})
		if err != nil {
			return nil, fmt.Errorf("run match: %w", err)
		}
		if len(result.Ranked) > 0 {
			session.Status = StatusMatched
		}
		reply = Reply{
			Text:        formatMatchReply(result),
			Ready:       true,
			MatchResult: result,
		}
	} else {
		reply = Reply{Text: a.followUpQuestion(ctx, session, readiness)}
	}

	if err := a.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	if err := a.sessions.AppendMessage(ctx, session.ID, "assistant", reply.Text); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Reset closes the user's open session so the next message starts over.
func (a *Agent) Reset(ctx context.Context, userID string) error {
	return a.sessions.CloseActive(ctx, userID)
}

// followUpQuestion asks for the most important missing field. The LLM gets a
// chance to phrase it naturally; on any failure the deterministic template
// is used instead.
func (a *Agent) followUpQuestion(ctx context.Context, session *Session, readiness preference.Readiness) string {
	fallbackText := templateQuestion(readiness.Missing)
	if a.textGen == nil {
		return fallbackText
	}

	prompt := fmt.Sprintf(`You are a friendly booking assistant for beauty services.
The user is booking a service and has not yet told you: %s.
Known so far: %s.
Ask one short, natural question to collect the first missing item.
Return a JSON object: {"question": "..."}`,
		strings.Join(readiness.Missing, ", "), describePreference(session.Pref))

	start := time.Now()
	resp, err := a.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		a.log.WithError(err).Warn("follow-up generation failed, using template", nil)
		return fallbackText
	}
	if a.metrics != nil {
		_ = a.metrics.RecordMeta(ctx, llm.AgentMeta{
			AgentName: "conversationalist",
			Usage:     resp.Usage,
			Latency:   time.Since(start),
		})
	}

	if q := parseQuestionJSON(resp.Content); q != "" {
		return q
	}
	return fallbackText
}

func templateQuestion(missing []string) string {
	if len(missing) == 0 {
		return "Anything else I should know before I look for options?"
	}
	switch missing[0] {
	case "service_type":
		return "What service are you looking for? For example a haircut, manicure, or massage."
	case "budget":
		return "What's your budget for this service?"
	case "time":
		return "When would you like to go? You can say things like 'next thursday 3 pm' or 'this weekend'."
	default:
		return "Could you tell me a bit more about what you need?"
	}
}

func describePreference(p preference.Preference) string {
	var parts []string
	if p.ServiceType != nil {
		parts = append(parts, "service: "+*p.ServiceType)
	}
	if p.BudgetMax != nil {
		parts = append(parts, fmt.Sprintf("budget up to $%.0f", *p.BudgetMax))
	}
	if p.PreferredDate != nil {
		parts = append(parts, "date: "+p.PreferredDate.Format("2006-01-02"))
	}
	if p.PreferredTime != nil {
		parts = append(parts, "time: "+*p.PreferredTime)
	}
	if p.TimeUrgency != nil {
		parts = append(parts, "urgency: "+string(*p.TimeUrgency))
	}
	if len(parts) == 0 {
		return "nothing yet"
	}
	return strings.Join(parts, ", ")
}

// parseQuestionJSON pulls the "question" field out of a model response,
// tolerating markdown code fences around the JSON.
func parseQuestionJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var out struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return ""
	}
	return out.Question
}

func formatMatchReply(result *matching.Result) string {
	if len(result.Ranked) == 0 {
		return result.Summary
	}

	var b strings.Builder
	b.WriteString("Here are your best options:\n")
	for i, sc := range result.Ranked {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "%d. %s - $%.0f, %.1f stars (match %.0f%%)\n",
			i+1, sc.Name, sc.Price, sc.Rating, sc.Overall)
		if sc.WhyRecommended != "" {
			fmt.Fprintf(&b, "   %s\n", sc.WhyRecommended)
		}
		if len(sc.AvailableTimes) > 0 {
			fmt.Fprintf(&b, "   Times: %s\n", strings.Join(sc.AvailableTimes, ", "))
		}
	}
	return b.String()
}
