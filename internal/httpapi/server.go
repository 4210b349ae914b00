// Package httpapi exposes the marketplace over REST: matching, the provider
// catalog, bookings, and the conversational agent.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"glowgo/internal/booking"
	"glowgo/internal/calendar"
	"glowgo/internal/conversation"
	"glowgo/internal/logger"
	"glowgo/internal/matching"
	"glowgo/internal/metrics"
	"glowgo/internal/preference"
	"glowgo/internal/provider"
	"glowgo/internal/timeparse"
	"glowgo/internal/user"
)

// AnalyzerFactory builds a calendar analyzer over a user-supplied Google
// Calendar access token.
type AnalyzerFactory func(ctx context.Context, token string) (*calendar.Analyzer, error)

// Server wires the application services into HTTP handlers.
type Server struct {
	pipeline    *matching.Pipeline
	providers   *provider.Repository
	bookings    *booking.Repository
	users       *user.Repository
	agent       *conversation.Agent
	analyzer    *calendar.Analyzer
	analyzerFor AnalyzerFactory
	log         logger.Logger
	jwtSecret   string
	dataPath    string
	radiusMiles float64
}

// NewServer builds the handler set. analyzer is the process-wide fallback
// calendar and analyzerFor resolves per-user calendars from stored tokens;
// both may be nil, in which case the calendar routes report 503 for users
// without a token of their own.
func NewServer(
	pipeline *matching.Pipeline,
	providers *provider.Repository,
	bookings *booking.Repository,
	users *user.Repository,
	agent *conversation.Agent,
	analyzer *calendar.Analyzer,
	analyzerFor AnalyzerFactory,
	log logger.Logger,
	jwtSecret, dataPath string,
	radiusMiles float64,
) *Server {
	return &Server{
		pipeline:    pipeline,
		providers:   providers,
		bookings:    bookings,
		users:       users,
		agent:       agent,
		analyzer:    analyzer,
		analyzerFor: analyzerFor,
		log:         log,
		jwtSecret:   jwtSecret,
		dataPath:    dataPath,
		radiusMiles: radiusMiles,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/match", s.handleMatch)
	r.Get("/providers", s.handleProvidersList)
	r.Get("/providers/{id}", s.handleProviderGet)
	r.Get("/providers/{id}/slots", s.handleProviderSlots)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/chat", s.handleChat)
		r.Post("/chat/reset", s.handleChatReset)
		r.Get("/bookings", s.handleBookingsList)
		r.Post("/providers", s.handleProviderCreate)
		r.Post("/bookings", s.handleBookingCreate)
		r.Post("/bookings/{id}/cancel", s.handleBookingCancel)
		r.Get("/calendar/suggestions", s.handleCalendarSuggestions)
		r.Get("/calendar/availability", s.handleCalendarAvailability)
		r.Post("/calendar/token", s.handleCalendarToken)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sys := metrics.GetSysHealth(s.dataPath)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime":     sys.Uptime.String(),
		"alloc_mb":   sys.AllocMB,
		"goroutines": sys.Goroutines,
		"data_size":  sys.DataDiskSize,
	})
}

type RegisterRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	u, err := s.users.Create(r.Context(), req.Name, req.Phone, req.Email)
	if err != nil {
		s.log.WithError(err).Error("register failed", nil)
		writeError(w, http.StatusInternalServerError, "could not create account")
		return
	}
	token, err := IssueToken(s.jwtSecret, u.ID)
	if err != nil {
		s.log.WithError(err).Error("token issue failed", nil)
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusCreated, RegisterResponse{UserID: u.ID, Token: token})
}

// MatchRequest is the public matching endpoint's payload. Dates use
// YYYY-MM-DD, times HH:MM.
type MatchRequest struct {
	ServiceType    string   `json:"service_type"`
	BudgetMin      *float64 `json:"budget_min,omitempty"`
	BudgetMax      *float64 `json:"budget_max,omitempty"`
	PreferredDate  string   `json:"preferred_date,omitempty"`
	PreferredTime  string   `json:"preferred_time,omitempty"`
	TimeConstraint string   `json:"time_constraint,omitempty"`
	Urgency        string   `json:"urgency,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lon            *float64 `json:"lon,omitempty"`
	RadiusMiles    float64  `json:"radius_miles,omitempty"`
	Limit          int      `json:"limit,omitempty"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ServiceType == "" {
		writeError(w, http.StatusBadRequest, "service_type is required")
		return
	}

	pref := preference.Preference{
		ServiceType:    &req.ServiceType,
		BudgetMin:      req.BudgetMin,
		BudgetMax:      req.BudgetMax,
		TimeConstraint: timeparse.Constraint(req.TimeConstraint),
	}
	if req.PreferredDate != "" {
		d, err := time.Parse("2006-01-02", req.PreferredDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "preferred_date must be YYYY-MM-DD")
			return
		}
		pref.PreferredDate = &d
	}
	if req.PreferredTime != "" {
		if _, err := time.Parse("15:04", req.PreferredTime); err != nil {
			writeError(w, http.StatusBadRequest, "preferred_time must be HH:MM")
			return
		}
		pref.PreferredTime = &req.PreferredTime
	}
	if req.Urgency != "" {
		u := preference.Urgency(req.Urgency)
		pref.TimeUrgency = &u
	}

	radius := req.RadiusMiles
	if radius <= 0 {
		radius = s.radiusMiles
	}
	limit := req.Limit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	result, err := s.pipeline.Match(r.Context(), matching.Request{
		Pref:        pref,
		UserLat:     req.Lat,
		UserLon:     req.Lon,
		RadiusMiles: radius,
		Limit:       limit,
	})
	if err != nil {
		s.log.WithError(err).Error("match failed", nil)
		writeError(w, http.StatusInternalServerError, "match failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProvidersList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := provider.OfferingFilter{
		ServiceType: q.Get("service_type"),
		Location:    q.Get("location"),
		SortBy:      q.Get("sort"),
	}
	if v := q.Get("min_price"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_price must be a number")
			return
		}
		filter.MinPrice = &p
	}
	if v := q.Get("max_price"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "max_price must be a number")
			return
		}
		filter.MaxPrice = &p
	}

	offerings, err := s.providers.FilterOfferings(r.Context(), filter)
	if err != nil {
		s.log.WithError(err).Error("list providers failed", nil)
		writeError(w, http.StatusInternalServerError, "could not list providers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total": len(offerings),
		"items": offerings,
	})
}

func (s *Server) handleProviderGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.providers.GetProvider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load provider")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateProviderRequest registers a merchant together with its service menu.
type CreateProviderRequest struct {
	Provider provider.Provider  `json:"provider"`
	Services []provider.Service `json:"services,omitempty"`
}

func (s *Server) handleProviderCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Provider.Name == "" {
		writeError(w, http.StatusBadRequest, "provider name is required")
		return
	}
	if req.Provider.ID == "" {
		req.Provider.ID = uuid.NewString()
	}
	if req.Provider.Source == "" {
		req.Provider.Source = "api"
	}

	if err := s.providers.UpsertProviders(r.Context(), []provider.Provider{req.Provider}); err != nil {
		s.log.WithError(err).Error("create provider failed", nil)
		writeError(w, http.StatusInternalServerError, "could not create provider")
		return
	}
	for _, svc := range req.Services {
		svc.MerchantID = req.Provider.ID
		if _, err := s.providers.CreateService(r.Context(), svc); err != nil {
			s.log.WithError(err).Error("create service failed", nil)
			writeError(w, http.StatusInternalServerError, "could not create service")
			return
		}
	}
	writeJSON(w, http.StatusCreated, req.Provider)
}

func (s *Server) handleProviderSlots(w http.ResponseWriter, r *http.Request) {
	from := time.Now()
	to := from.AddDate(0, 0, 7)
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		from = d
		to = d.AddDate(0, 0, 1)
	}

	slots, err := s.providers.OpenSlots(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list slots")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": slots})
}

type ChatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.agent.HandleMessage(r.Context(), userIDFrom(r.Context()), req.Message)
	if err != nil {
		s.log.WithError(err).Error("chat turn failed", nil)
		writeError(w, http.StatusInternalServerError, "could not process message")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.Reset(r.Context(), userIDFrom(r.Context())); err != nil {
		s.log.WithError(err).Error("chat reset failed", nil)
		writeError(w, http.StatusInternalServerError, "could not reset session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type CreateBookingRequest struct {
	MerchantID string  `json:"merchant_id"`
	ServiceID  string  `json:"service_id"`
	SlotID     string  `json:"slot_id,omitempty"`
	Price      float64 `json:"price"`
}

func (s *Server) handleBookingCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.MerchantID == "" || req.ServiceID == "" {
		writeError(w, http.StatusBadRequest, "merchant_id and service_id are required")
		return
	}

	b := booking.Booking{
		UserID:     userIDFrom(r.Context()),
		MerchantID: req.MerchantID,
		ServiceID:  req.ServiceID,
		Price:      req.Price,
	}
	if req.SlotID != "" {
		booked, err := s.providers.MarkSlotBooked(r.Context(), req.SlotID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not reserve slot")
			return
		}
		if !booked {
			writeError(w, http.StatusConflict, "slot already taken")
			return
		}
		b.SlotID = &req.SlotID
		b.Status = booking.StatusConfirmed
	}

	created, err := s.bookings.Create(r.Context(), b)
	if err != nil {
		s.log.WithError(err).Error("create booking failed", nil)
		writeError(w, http.StatusInternalServerError, "could not create booking")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleBookingsList(w http.ResponseWriter, r *http.Request) {
	items, err := s.bookings.ListByUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list bookings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleBookingCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := s.bookings.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load booking")
		return
	}
	if b == nil || b.UserID != userIDFrom(r.Context()) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err := s.bookings.UpdateStatus(r.Context(), id, booking.StatusCancelled); err != nil {
		writeError(w, http.StatusInternalServerError, "could not cancel booking")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// resolveAnalyzer prefers the authenticated user's own calendar token and
// falls back to the process-wide analyzer when the user has none.
func (s *Server) resolveAnalyzer(ctx context.Context) *calendar.Analyzer {
	if s.analyzerFor != nil {
		u, err := s.users.Get(ctx, userIDFrom(ctx))
		if err == nil && u != nil && u.CalendarToken != "" {
			a, err := s.analyzerFor(ctx, u.CalendarToken)
			if err == nil {
				return a
			}
			s.log.WithError(err).Warn("per-user calendar source failed, using shared calendar", nil)
		}
	}
	return s.analyzer
}

type CalendarTokenRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleCalendarToken(w http.ResponseWriter, r *http.Request) {
	var req CalendarTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.users.SetCalendarToken(r.Context(), userIDFrom(r.Context()), req.Token); err != nil {
		s.log.WithError(err).Error("store calendar token failed", nil)
		writeError(w, http.StatusInternalServerError, "could not store token")
		return
	}
	status := "connected"
	if req.Token == "" {
		status = "disconnected"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleCalendarSuggestions(w http.ResponseWriter, r *http.Request) {
	analyzer := s.resolveAnalyzer(r.Context())
	if analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar not configured")
		return
	}
	serviceType := r.URL.Query().Get("service_type")
	if serviceType == "" {
		writeError(w, http.StatusBadRequest, "service_type is required")
		return
	}

	var targetDate *time.Time
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		targetDate = &d
	}

	analysis, err := analyzer.Analyze(r.Context(), serviceType, targetDate, time.Now())
	if err != nil {
		s.log.WithError(err).Error("calendar analysis failed", nil)
		writeError(w, http.StatusInternalServerError, "could not analyze calendar")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleCalendarAvailability(w http.ResponseWriter, r *http.Request) {
	analyzer := s.resolveAnalyzer(r.Context())
	if analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar not configured")
		return
	}
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	d, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	msg, err := analyzer.CheckAvailability(r.Context(), d, r.URL.Query().Get("time"))
	if err != nil {
		s.log.WithError(err).Error("calendar availability check failed", nil)
		writeError(w, http.StatusInternalServerError, "could not check calendar")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
