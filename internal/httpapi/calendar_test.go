package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"glowgo/internal/booking"
	"glowgo/internal/calendar"
	"glowgo/internal/conversation"
	"glowgo/internal/database"
	"glowgo/internal/logger"
	"glowgo/internal/matching"
	"glowgo/internal/provider"
	"glowgo/internal/user"
)

type stubCalendarSource struct {
	events []calendar.Event
	busy   []calendar.Period
}

func (s *stubCalendarSource) ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	return s.events, nil
}

func (s *stubCalendarSource) BusyPeriods(ctx context.Context, from, to time.Time) ([]calendar.Period, error) {
	return s.busy, nil
}

func newCalendarTestServer(t *testing.T, source calendar.Source, factory AnalyzerFactory) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	db, err := database.NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	log := logger.NewTestLogger(t)
	providers := provider.NewRepository(db.SQL)
	pipeline := matching.NewPipeline(
		providers,
		matching.NewEngine(matching.DefaultWeights()),
		matching.NewFallback(matching.DefaultFallbackConfig()),
		log,
	)
	agent := conversation.NewAgent(
		conversation.NewSessionRepository(db.SQL),
		pipeline, nil, nil, log, 10,
	)

	var analyzer *calendar.Analyzer
	if source != nil {
		analyzer = calendar.NewAnalyzer(source, nil, log)
	}
	srv := NewServer(
		pipeline, providers,
		booking.NewRepository(db.SQL),
		user.NewRepository(db.SQL),
		agent, analyzer, factory, log,
		"test-secret", dir, 10,
	)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func getWithToken(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestCalendarUnconfigured(t *testing.T) {
	ts := newCalendarTestServer(t, nil, nil)
	account := register(t, ts)

	resp := getWithToken(t, ts.URL+"/calendar/suggestions?service_type=haircut", account.Token)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("suggestions status = %d, want 503", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCalendarSuggestions(t *testing.T) {
	target := time.Now().AddDate(0, 0, 2)
	eventStart := time.Date(target.Year(), target.Month(), target.Day(), 15, 0, 0, 0, time.Local)
	source := &stubCalendarSource{
		events: []calendar.Event{
			{Name: "Client pitch", Start: eventStart, End: eventStart.Add(time.Hour)},
		},
	}
	ts := newCalendarTestServer(t, source, nil)
	account := register(t, ts)

	url := ts.URL + "/calendar/suggestions?service_type=haircut&date=" + target.Format("2006-01-02")
	resp := getWithToken(t, url, account.Token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("suggestions status = %d, want 200", resp.StatusCode)
	}
	var analysis calendar.Analysis
	decode(t, resp, &analysis)

	if len(analysis.ImportantEvents) != 1 {
		t.Fatalf("important events = %d, want 1", len(analysis.ImportantEvents))
	}
	if len(analysis.SuggestedSlots) == 0 {
		t.Error("expected at least one suggested slot")
	}
	if !strings.Contains(analysis.SmartSuggestion, "Client pitch") {
		t.Errorf("smart suggestion does not mention the event: %q", analysis.SmartSuggestion)
	}
}

func TestCalendarPerUserToken(t *testing.T) {
	target := time.Now().AddDate(0, 0, 2)
	eventStart := time.Date(target.Year(), target.Month(), target.Day(), 15, 0, 0, 0, time.Local)
	personal := &stubCalendarSource{
		events: []calendar.Event{
			{Name: "Anniversary dinner", Start: eventStart, End: eventStart.Add(2 * time.Hour)},
		},
	}
	var seenToken string
	factory := func(_ context.Context, token string) (*calendar.Analyzer, error) {
		seenToken = token
		return calendar.NewAnalyzer(personal, nil, logger.NewNop()), nil
	}

	// No shared analyzer: only users with a stored token get calendar access.
	ts := newCalendarTestServer(t, nil, factory)
	account := register(t, ts)

	url := ts.URL + "/calendar/suggestions?service_type=haircut&date=" + target.Format("2006-01-02")
	resp := getWithToken(t, url, account.Token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("no-token status = %d, want 503", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/calendar/token", account.Token, CalendarTokenRequest{Token: "user-access-token"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("store token status = %d", resp.StatusCode)
	}

	resp = getWithToken(t, url, account.Token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("suggestions status = %d, want 200", resp.StatusCode)
	}
	var analysis calendar.Analysis
	decode(t, resp, &analysis)
	if seenToken != "user-access-token" {
		t.Errorf("factory saw token %q, want the stored one", seenToken)
	}
	if len(analysis.ImportantEvents) != 1 || analysis.ImportantEvents[0].Name != "Anniversary dinner" {
		t.Fatalf("important events = %+v, want the user's own calendar event", analysis.ImportantEvents)
	}
}

func TestCalendarAvailability(t *testing.T) {
	ts := newCalendarTestServer(t, &stubCalendarSource{}, nil)
	account := register(t, ts)

	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	resp := getWithToken(t, ts.URL+"/calendar/availability?date="+date+"&time=14:00", account.Token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("availability status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if !strings.Contains(body["message"], "completely free") {
		t.Errorf("message = %q, want free-calendar text", body["message"])
	}

	resp = getWithToken(t, ts.URL+"/calendar/availability", account.Token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing date status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}
