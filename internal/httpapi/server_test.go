package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"glowgo/internal/booking"
	"glowgo/internal/conversation"
	"glowgo/internal/database"
	"glowgo/internal/logger"
	"glowgo/internal/matching"
	"glowgo/internal/provider"
	"glowgo/internal/user"
)

func newTestServer(t *testing.T) (*httptest.Server, *provider.Repository) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	providers := provider.NewRepository(db.SQL)
	if err := providers.Seed(context.Background(), nil); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	log := logger.NewTestLogger(t)
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
	srv := NewServer(
		pipeline, providers,
		booking.NewRepository(db.SQL),
		user.NewRepository(db.SQL),
		agent, nil, nil, log,
		"test-secret", dir, 10,
	)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, providers
}

func postJSON(t *testing.T, url, token string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func register(t *testing.T, ts *httptest.Server) RegisterResponse {
	t.Helper()
	resp := postJSON(t, ts.URL+"/auth/register", "", RegisterRequest{Name: "Test User"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	var out RegisterResponse
	decode(t, resp, &out)
	return out
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]any
	decode(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("health status = %v", body["status"])
	}
}

func TestMatchEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/match", "", MatchRequest{
		ServiceType: "haircut",
		BudgetMax:   floatPtr(100),
		Urgency:     "week",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("match status = %d", resp.StatusCode)
	}
	var result matching.Result
	decode(t, resp, &result)
	if len(result.Ranked) == 0 {
		t.Fatalf("no ranked options: %+v", result)
	}
	for _, c := range result.Ranked {
		if c.Candidate.Price > 100 {
			t.Errorf("candidate %s over budget: $%.0f", c.Candidate.Name, c.Candidate.Price)
		}
	}

	resp = postJSON(t, ts.URL+"/match", "", MatchRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing service_type status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProvidersEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/providers?service_type=manicure")
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Total int                 `json:"total"`
		Items []provider.Offering `json:"items"`
	}
	decode(t, resp, &list)
	if list.Total == 0 {
		t.Fatal("expected seeded manicure offerings")
	}
	providerID := list.Items[0].Provider.ID

	resp, err = http.Get(ts.URL + "/providers/" + providerID)
	if err != nil {
		t.Fatal(err)
	}
	var p provider.Provider
	decode(t, resp, &p)
	if p.ID != providerID {
		t.Errorf("provider id = %q, want %q", p.ID, providerID)
	}

	resp, err = http.Get(ts.URL + "/providers/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown provider status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/providers/" + providerID + "/slots")
	if err != nil {
		t.Fatal(err)
	}
	var slots struct {
		Items []provider.Slot `json:"items"`
	}
	decode(t, resp, &slots)
	if len(slots.Items) == 0 {
		t.Error("expected seeded open slots")
	}
}

func TestProvidersListFilters(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/providers?service_type=manicure&max_price=1")
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Total int                 `json:"total"`
		Items []provider.Offering `json:"items"`
	}
	decode(t, resp, &list)
	if list.Total != 0 {
		t.Errorf("impossible price cap matched %d offerings", list.Total)
	}

	resp, err = http.Get(ts.URL + "/providers?service_type=hair&sort=price")
	if err != nil {
		t.Fatal(err)
	}
	decode(t, resp, &list)
	if list.Total == 0 {
		t.Fatal("expected hair offerings from the seed catalog")
	}
	for i := 1; i < len(list.Items); i++ {
		if list.Items[i-1].Service.BasePrice > list.Items[i].Service.BasePrice {
			t.Fatalf("price sort out of order at %d: %+v", i, list.Items)
		}
	}

	resp, err = http.Get(ts.URL + "/providers?min_price=abc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad min_price status = %d, want 400", resp.StatusCode)
	}
}

func TestProviderCreate(t *testing.T) {
	ts, _ := newTestServer(t)
	auth := register(t, ts)

	resp := postJSON(t, ts.URL+"/providers", "", CreateProviderRequest{
		Provider: provider.Provider{Name: "New Salon"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create status = %d, want 401", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/providers", auth.Token, CreateProviderRequest{
		Provider: provider.Provider{Name: "New Salon", Address: "9 Elm St", Rating: 4.2},
		Services: []provider.Service{
			{Name: "Gel Manicure", ServiceType: "manicure", BasePrice: 55, DurationMinutes: 45},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created provider.Provider
	decode(t, resp, &created)
	if created.ID == "" {
		t.Fatal("created provider has no id")
	}
	if created.Source != "api" {
		t.Errorf("source = %q, want api", created.Source)
	}

	resp, err := http.Get(ts.URL + "/providers/" + created.ID)
	if err != nil {
		t.Fatal(err)
	}
	var got provider.Provider
	decode(t, resp, &got)
	if got.Name != "New Salon" {
		t.Errorf("fetched name = %q", got.Name)
	}

	resp = postJSON(t, ts.URL+"/providers", auth.Token, CreateProviderRequest{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("nameless create status = %d, want 400", resp.StatusCode)
	}
}

func TestChatRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/chat", "", ChatRequest{Message: "hi"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated chat status = %d, want 401", resp.StatusCode)
	}

	auth := register(t, ts)
	resp = postJSON(t, ts.URL+"/chat", auth.Token, ChatRequest{Message: "I need a haircut"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}
	var reply conversation.Reply
	decode(t, resp, &reply)
	if reply.Text == "" {
		t.Error("empty chat reply")
	}
	if reply.Ready {
		t.Error("agent ready after a single vague message")
	}
}

func TestBookingFlow(t *testing.T) {
	ts, providers := newTestServer(t)
	auth := register(t, ts)

	offerings, err := providers.ListOfferings(context.Background(), "haircut")
	if err != nil || len(offerings) == 0 {
		t.Fatalf("no haircut offerings: %v", err)
	}
	offering := offerings[0]

	slots, err := providers.OpenSlots(context.Background(),
		offering.Provider.ID,
		timeNowPlusDays(0), timeNowPlusDays(8))
	if err != nil || len(slots) == 0 {
		t.Fatalf("no open slots: %v", err)
	}
	slotID := slots[0].ID

	req := CreateBookingRequest{
		MerchantID: offering.Provider.ID,
		ServiceID:  offering.Service.ID,
		SlotID:     slotID,
		Price:      offering.Service.BasePrice,
	}
	resp := postJSON(t, ts.URL+"/bookings", auth.Token, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create booking status = %d", resp.StatusCode)
	}
	var created booking.Booking
	decode(t, resp, &created)
	if created.Status != booking.StatusConfirmed {
		t.Errorf("booking status = %s, want confirmed when a slot is held", created.Status)
	}

	// The same slot cannot be taken twice.
	resp = postJSON(t, ts.URL+"/bookings", auth.Token, req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double booking status = %d, want 409", resp.StatusCode)
	}

	httpReq, _ := http.NewRequest(http.MethodGet, ts.URL+"/bookings", nil)
	httpReq.Header.Set("Authorization", "Bearer "+auth.Token)
	listResp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Items []booking.Booking `json:"items"`
	}
	decode(t, listResp, &list)
	if len(list.Items) != 1 || list.Items[0].ID != created.ID {
		t.Fatalf("bookings list = %+v", list.Items)
	}

	resp = postJSON(t, ts.URL+"/bookings/"+created.ID+"/cancel", auth.Token, struct{}{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}

	// Another user cannot cancel someone else's booking.
	other := register(t, ts)
	resp = postJSON(t, ts.URL+"/bookings/"+created.ID+"/cancel", other.Token, struct{}{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign cancel status = %d, want 404", resp.StatusCode)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := IssueToken("secret", "user-1")
	if err != nil {
		t.Fatal(err)
	}
	userID, err := parseToken("secret", token)
	if err != nil {
		t.Fatal(err)
	}
	if userID != "user-1" {
		t.Errorf("parsed user id = %q", userID)
	}

	if _, err := parseToken("wrong-secret", token); err == nil {
		t.Error("expected verification failure with the wrong secret")
	}
}

func floatPtr(v float64) *float64 { return &v }

func timeNowPlusDays(days int) time.Time {
	return time.Now().AddDate(0, 0, days)
}
