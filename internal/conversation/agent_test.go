package conversation

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"glowgo/internal/database"
	"glowgo/internal/logger"
	"glowgo/internal/matching"
)

// stubMatcher returns a canned result and records the request it saw.
type stubMatcher struct {
	result  *matching.Result
	lastReq matching.Request
	calls   int
}

func (m *stubMatcher) Match(_ context.Context, req matching.Request) (*matching.Result, error) {
	m.calls++
	m.lastReq = req
	return m.result, nil
}

func newTestAgent(t *testing.T, matcher Matcher) (*Agent, *SessionRepository) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sessions := NewSessionRepository(db.SQL)
	agent := NewAgent(sessions, matcher, nil, nil, logger.NewTestLogger(t), 10)
	return agent, sessions
}

func seedTestUser(t *testing.T, sessions *SessionRepository) string {
	t.Helper()
	// Sessions reference users; insert one directly.
	_, err := sessions.db.Exec(`INSERT INTO users (id, name) VALUES ('u1', 'Test User')`)
	if err != nil {
		t.Fatalf("insert test user: %v", err)
	}
	return "u1"
}

func TestHandleMessageGathersIncrementally(t *testing.T) {
	matcher := &stubMatcher{result: &matching.Result{
		Ranked: []matching.ScoredCandidate{
			{Candidate: matching.Candidate{Name: "Cambridge Barbershop", Price: 35, Rating: 4.9}, Overall: 96.0},
		},
		TotalFound: 1,
	}}
	agent, sessions := newTestAgent(t, matcher)
	userID := seedTestUser(t, sessions)
	ctx := context.Background()

	// Turn 1: service only. The agent should ask a follow-up, not match.
	reply, err := agent.HandleMessage(ctx, userID, "I need a haircut")
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if reply.Ready {
		t.Fatal("turn 1: agent matched before preferences were complete")
	}
	if matcher.calls != 0 {
		t.Fatalf("turn 1: matcher called %d times, want 0", matcher.calls)
	}
	if !strings.Contains(reply.Text, "budget") {
		t.Errorf("turn 1: expected budget question, got %q", reply.Text)
	}

	// Turn 2: budget. Still missing the time.
	reply, err = agent.HandleMessage(ctx, userID, "under $50")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if reply.Ready {
		t.Fatal("turn 2: agent matched before preferences were complete")
	}
	if !strings.Contains(reply.Text, "When") {
		t.Errorf("turn 2: expected time question, got %q", reply.Text)
	}

	// Turn 3: time completes the preference; the match runs.
	reply, err = agent.HandleMessage(ctx, userID, "next thursday 3 pm")
	if err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if !reply.Ready {
		t.Fatal("turn 3: agent not ready after all fields provided")
	}
	if matcher.calls != 1 {
		t.Fatalf("turn 3: matcher called %d times, want 1", matcher.calls)
	}
	if !strings.Contains(reply.Text, "Cambridge Barbershop") {
		t.Errorf("turn 3: expected ranked options in reply, got %q", reply.Text)
	}

	// The accumulated preference made it into the match request.
	pref := matcher.lastReq.Pref
	if pref.ServiceType == nil || *pref.ServiceType != "haircut" {
		t.Errorf("merged service type = %v, want haircut", pref.ServiceType)
	}
	if pref.BudgetMax == nil || *pref.BudgetMax != 50 {
		t.Errorf("merged budget = %v, want 50", pref.BudgetMax)
	}
	if pref.PreferredTime == nil || *pref.PreferredTime != "15:00" {
		t.Errorf("merged time = %v, want 15:00", pref.PreferredTime)
	}
}

func TestHandleMessagePersistsSessionAcrossTurns(t *testing.T) {
	matcher := &stubMatcher{result: &matching.Result{}}
	agent, sessions := newTestAgent(t, matcher)
	userID := seedTestUser(t, sessions)
	ctx := context.Background()

	if _, err := agent.HandleMessage(ctx, userID, "I want a manicure"); err != nil {
		t.Fatal(err)
	}

	session, err := sessions.GetActive(ctx, userID)
	if err != nil {
		t.Fatalf("get active session: %v", err)
	}
	if session == nil {
		t.Fatal("no active session after first turn")
	}
	if session.Pref.ServiceType == nil || *session.Pref.ServiceType != "manicure" {
		t.Errorf("persisted service type = %v, want manicure", session.Pref.ServiceType)
	}

	history, err := sessions.History(ctx, session.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want user turn plus assistant reply", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Errorf("history roles = %s, %s", history[0].Role, history[1].Role)
	}
}

func TestResetClosesActiveSession(t *testing.T) {
	matcher := &stubMatcher{result: &matching.Result{}}
	agent, sessions := newTestAgent(t, matcher)
	userID := seedTestUser(t, sessions)
	ctx := context.Background()

	if _, err := agent.HandleMessage(ctx, userID, "I want a manicure"); err != nil {
		t.Fatal(err)
	}
	if err := agent.Reset(ctx, userID); err != nil {
		t.Fatalf("reset: %v", err)
	}

	session, err := sessions.GetActive(ctx, userID)
	if err != nil {
		t.Fatalf("get active session: %v", err)
	}
	if session != nil {
		t.Fatalf("active session survived reset: %+v", session)
	}

	// The next message starts over, so the service question comes back.
	reply, err := agent.HandleMessage(ctx, userID, "hello again")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply.Text, "What service") {
		t.Errorf("post-reset reply = %q, want the service question", reply.Text)
	}
}

func TestFormatMatchReplyListsReasonAndTimes(t *testing.T) {
	result := &matching.Result{
		Ranked: []matching.ScoredCandidate{
			{
				Candidate:      matching.Candidate{Name: "Cambridge Barbershop", Price: 35, Rating: 4.9},
				Overall:        96.0,
				Relevance:      0.96,
				WhyRecommended: "Rated 4.9 stars by customers",
				AvailableTimes: []string{"Tue Nov 25 10:00 AM", "Tue Nov 25 2:00 PM"},
			},
		},
		TotalFound: 1,
	}

	text := formatMatchReply(result)
	if !strings.Contains(text, "Cambridge Barbershop - $35, 4.9 stars (match 96%)") {
		t.Errorf("reply missing the option line: %q", text)
	}
	if !strings.Contains(text, "Rated 4.9 stars by customers") {
		t.Errorf("reply missing the recommendation reason: %q", text)
	}
	if !strings.Contains(text, "Times: Tue Nov 25 10:00 AM, Tue Nov 25 2:00 PM") {
		t.Errorf("reply missing the slot times: %q", text)
	}
}

func TestTemplateQuestionOrder(t *testing.T) {
	cases := []struct {
		missing []string
		want    string
	}{
		{[]string{"service_type", "budget", "time"}, "What service"},
		{[]string{"budget", "time"}, "budget"},
		{[]string{"time"}, "When"},
		{nil, "Anything else"},
	}
	for _, tc := range cases {
		got := templateQuestion(tc.missing)
		if !strings.Contains(got, tc.want) {
			t.Errorf("templateQuestion(%v) = %q, want it to mention %q", tc.missing, got, tc.want)
		}
	}
}

func TestParseQuestionJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"question": "What's your budget?"}`, "What's your budget?"},
		{"```json\n{\"question\": \"When works for you?\"}\n```", "When works for you?"},
		{"not json at all", ""},
	}
	for _, tc := range cases {
		if got := parseQuestionJSON(tc.in); got != tc.want {
			t.Errorf("parseQuestionJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
