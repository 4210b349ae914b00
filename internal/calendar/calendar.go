// Package calendar analyzes a user's calendar to suggest appointment times
// that fit around their existing commitments.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"glowgo/internal/llm"
	"glowgo/internal/logger"
)

// serviceDurations estimates appointment length in minutes per service type.
var serviceDurations = map[string]int{
	"haircut":  60,
	"nails":    45,
	"manicure": 30,
	"pedicure": 45,
	"massage":  90,
	"facial":   60,
	"waxing":   30,
	"makeup":   45,
	"spa":      120,
}

const (
	defaultDurationMinutes = 60
	bufferMinutes          = 30
	businessStartHour      = 9
	businessEndHour        = 19
)

// preferredHours are late morning to early afternoon, the usual window for
// beauty appointments ahead of an evening event.
var preferredHours = []int{10, 11, 12, 13, 14}

// importantEventKeywords flag events where the user will want to look their best.
var importantEventKeywords = []string{
	"meeting", "interview", "presentation", "conference", "pitch",
	"client", "networking", "board meeting", "review", "demo",
	"wedding", "baby shower", "bridal shower", "birthday party",
	"engagement", "anniversary", "graduation", "gala", "fundraiser",
	"date", "date night", "dinner party", "reception",
	"competition", "recital", "performance", "photoshoot", "photo",
	"video", "recording", "audition", "show",
	"family dinner", "reunion", "holiday", "thanksgiving", "christmas",
	"easter", "passover", "new year", "party",
}

// Event is a single calendar entry.
type Event struct {
	Name     string
	Start    time.Time
	End      time.Time
	Location string
}

// Period is a busy interval returned by a free/busy query.
type Period struct {
	Start time.Time
	End   time.Time
}

// Source reads a user's calendar.
type Source interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]Event, error)
	BusyPeriods(ctx context.Context, from, to time.Time) ([]Period, error)
}

// Slot is a gap in the calendar long enough for an appointment.
type Slot struct {
	Start time.Time
	End   time.Time
	Kind  string
	Note  string
}

// Slot kinds.
const (
	SlotBeforeFirstEvent = "before_first_event"
	SlotBetweenEvents    = "between_events"
	SlotAfterLastEvent   = "after_last_event"
	SlotFreeDay          = "free_day"
)

// ImportantEvent is an upcoming event worth looking polished for.
type ImportantEvent struct {
	Event
	Reason string
}

// DayBeforeSuggestion proposes an appointment the day before an important event.
type DayBeforeSuggestion struct {
	EventName     string
	EventDate     time.Time
	SuggestedDay  time.Time
	SuggestedTime string
	Reason        string
}

// Analysis is the result of scanning the calendar for appointment opportunities.
type Analysis struct {
	SuggestedSlots       []Slot
	ImportantEvents      []ImportantEvent
	DayBeforeSuggestions []DayBeforeSuggestion
	EventsOnDate         []Event
	SmartSuggestion      string
}

// Analyzer turns raw calendar events into appointment suggestions. A nil
// generator limits importance detection to the keyword list.
type Analyzer struct {
	source Source
	gen    llm.TextGenerator
	log    logger.Logger
}

func NewAnalyzer(source Source, gen llm.TextGenerator, log logger.Logger) *Analyzer {
	return &Analyzer{source: source, gen: gen, log: log}
}

// ServiceDuration returns the estimated minutes for a service type.
func ServiceDuration(serviceType string) int {
	if d, ok := serviceDurations[strings.ToLower(serviceType)]; ok {
		return d
	}
	return defaultDurationMinutes
}

// Analyze scans the calendar around targetDate, or the next seven days when
// targetDate is nil, and builds suggestions for fitting in the given service.
func (a *Analyzer) Analyze(ctx context.Context, serviceType string, targetDate *time.Time, now time.Time) (*Analysis, error) {
	duration := ServiceDuration(serviceType)
	totalNeeded := duration + 2*bufferMinutes

	var from, to time.Time
	if targetDate != nil {
		from = startOfDay(*targetDate)
		to = from.AddDate(0, 0, 1)
	} else {
		from = startOfDay(now)
		to = from.AddDate(0, 0, 7)
	}

	raw, err := a.source.ListEvents(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}

	// Events that already ended cannot conflict with anything.
	events := make([]Event, 0, len(raw))
	for _, e := range raw {
		if e.End.Before(now) {
			continue
		}
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })

	analysis := &Analysis{}
	for _, e := range events {
		lower := strings.ToLower(e.Name)
		if containsAny(lower, importantEventKeywords) {
			analysis.ImportantEvents = append(analysis.ImportantEvents, ImportantEvent{
				Event:  e,
				Reason: importanceReason(lower),
			})
		}
	}

	if scored, err := DetectImportantEvents(ctx, a.gen, events); err != nil {
		a.log.Warn("model importance rating failed, keeping keyword matches", map[string]interface{}{"error": err})
	} else {
		analysis.ImportantEvents = mergeScoredEvents(analysis.ImportantEvents, scored, events)
	}

	if targetDate != nil {
		analysis.EventsOnDate = eventsOnDay(events, *targetDate)
		analysis.SuggestedSlots = findDaySlots(*targetDate, analysis.EventsOnDate, totalNeeded, now)
	}

	for _, imp := range analysis.ImportantEvents {
		// Too late for a day-before appointment once the event is under a day away.
		if imp.Start.Sub(now) < 24*time.Hour {
			continue
		}
		dayBefore := imp.Start.AddDate(0, 0, -1)
		suggested := bestTimeForDay(dayBefore, eventsOnDay(events, dayBefore), totalNeeded, now)
		analysis.DayBeforeSuggestions = append(analysis.DayBeforeSuggestions, DayBeforeSuggestion{
			EventName:     imp.Name,
			EventDate:     imp.Start,
			SuggestedDay:  dayBefore,
			SuggestedTime: suggested,
			Reason:        fmt.Sprintf("Get your %s done before %s so you look your best!", serviceType, imp.Name),
		})
	}

	analysis.SmartSuggestion = buildSmartSuggestion(analysis, serviceType, targetDate)

	a.log.Debug("calendar analyzed", map[string]interface{}{
		"events":           len(events),
		"important_events": len(analysis.ImportantEvents),
		"suggested_slots":  len(analysis.SuggestedSlots),
	})
	return analysis, nil
}

// CheckAvailability summarizes busy periods around a requested date and time.
// With a specific time the window is two hours either side; without one the
// whole day from 9 AM to 9 PM is checked.
func (a *Analyzer) CheckAvailability(ctx context.Context, date time.Time, timeOfDay string) (string, error) {
	day := startOfDay(date)
	var from, to time.Time
	if timeOfDay != "" {
		t, err := time.Parse("15:04", timeOfDay)
		if err != nil {
			return "", fmt.Errorf("parse requested time %q: %w", timeOfDay, err)
		}
		at := day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
		from = at.Add(-2 * time.Hour)
		to = at.Add(2 * time.Hour)
	} else {
		from = day.Add(9 * time.Hour)
		to = day.Add(21 * time.Hour)
	}

	busy, err := a.source.BusyPeriods(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("query free/busy: %w", err)
	}
	if len(busy) == 0 {
		return fmt.Sprintf("Great news! Your calendar is completely free on %s between %s and %s.",
			date.Format("2006-01-02"), from.Format("3:04 PM"), to.Format("3:04 PM")), nil
	}

	lines := make([]string, 0, len(busy))
	for _, p := range busy {
		lines = append(lines, fmt.Sprintf("%s - %s", p.Start.Format("3:04 PM"), p.End.Format("3:04 PM")))
	}
	return "You have the following events on your calendar:\n" + strings.Join(lines, "\n"), nil
}

func eventsOnDay(events []Event, day time.Time) []Event {
	y, m, d := day.Date()
	var out []Event
	for _, e := range events {
		ey, em, ed := e.Start.Date()
		if ey == y && em == m && ed == d {
			out = append(out, e)
		}
	}
	return out
}

// findDaySlots returns the gaps on a single day that fit the service plus
// travel buffer on both sides.
func findDaySlots(day time.Time, dayEvents []Event, totalNeeded int, now time.Time) []Slot {
	dayStart := startOfDay(day).Add(businessStartHour * time.Hour)
	dayEnd := startOfDay(day).Add(businessEndHour * time.Hour)
	if sameDay(day, now) && now.After(dayStart) {
		dayStart = now.Add(30 * time.Minute)
	}

	if len(dayEvents) == 0 {
		return []Slot{{
			Start: dayStart,
			End:   dayEnd,
			Kind:  SlotFreeDay,
			Note:  "Your calendar is free this day!",
		}}
	}

	need := time.Duration(totalNeeded) * time.Minute
	buffer := bufferMinutes * time.Minute
	var slots []Slot

	if first := dayEvents[0].Start.Add(-buffer); first.Sub(dayStart) >= need {
		slots = append(slots, Slot{
			Start: dayStart,
			End:   first,
			Kind:  SlotBeforeFirstEvent,
			Note:  "Before your " + dayEvents[0].Name,
		})
	}
	for i := 0; i < len(dayEvents)-1; i++ {
		gapStart := dayEvents[i].End.Add(buffer)
		gapEnd := dayEvents[i+1].Start.Add(-buffer)
		if gapEnd.Sub(gapStart) >= need {
			slots = append(slots, Slot{
				Start: gapStart,
				End:   gapEnd,
				Kind:  SlotBetweenEvents,
				Note:  fmt.Sprintf("Between %s and %s", dayEvents[i].Name, dayEvents[i+1].Name),
			})
		}
	}
	if last := dayEvents[len(dayEvents)-1].End.Add(buffer); dayEnd.Sub(last) >= need {
		slots = append(slots, Slot{
			Start: last,
			End:   dayEnd,
			Kind:  SlotAfterLastEvent,
			Note:  "After your " + dayEvents[len(dayEvents)-1].Name,
		})
	}
	return slots
}

// bestTimeForDay picks a concrete start time on the given day, preferring
// late morning so there is time to get ready afterwards.
func bestTimeForDay(day time.Time, dayEvents []Event, totalNeeded int, now time.Time) string {
	if len(dayEvents) == 0 {
		return "11:00 AM"
	}

	slots := findDaySlots(day, dayEvents, totalNeeded, now)
	if len(slots) == 0 {
		return "No available time"
	}

	for _, slot := range slots {
		for _, hour := range preferredHours {
			at := startOfDay(day).Add(time.Duration(hour) * time.Hour)
			if !at.Before(slot.Start) && at.Before(slot.End) {
				return at.Format("3:04 PM")
			}
		}
	}

	// Round the first slot's start up to the half hour.
	start := slots[0].Start
	switch {
	case start.Minute() == 0 || start.Minute() == 30:
	case start.Minute() < 30:
		start = start.Truncate(time.Hour).Add(30 * time.Minute)
	default:
		start = start.Truncate(time.Hour).Add(time.Hour)
	}
	return start.Format("3:04 PM")
}

func importanceReason(nameLower string) string {
	switch {
	case containsAny(nameLower, []string{"wedding", "bridal", "engagement"}):
		return "Special celebration where you'll want to look your absolute best"
	case containsAny(nameLower, []string{"interview", "pitch", "client", "board"}):
		return "Professional event where first impressions matter"
	case containsAny(nameLower, []string{"date", "anniversary"}):
		return "Romantic occasion where looking great is a must"
	case containsAny(nameLower, []string{"photo", "video", "performance"}):
		return "You'll be photographed or on camera"
	case containsAny(nameLower, []string{"party", "gala", "dinner"}):
		return "Social event with many people"
	case containsAny(nameLower, []string{"meeting", "conference", "presentation"}):
		return "Professional gathering where you'll meet important people"
	default:
		return "Important event where looking polished matters"
	}
}

func buildSmartSuggestion(analysis *Analysis, serviceType string, targetDate *time.Time) string {
	var parts []string

	if targetDate != nil && len(analysis.EventsOnDate) > 0 {
		events := analysis.EventsOnDate
		switch len(events) {
		case 1:
			parts = append(parts, fmt.Sprintf("I see you have %s at %s.",
				events[0].Name, events[0].Start.Format("3:04 PM")))
		case 2:
			parts = append(parts, fmt.Sprintf("I see from your calendar you have %s at %s, and %s at %s.",
				events[0].Name, events[0].Start.Format("3:04 PM"),
				events[1].Name, events[1].Start.Format("3:04 PM")))
		default:
			parts = append(parts, fmt.Sprintf("I see you have %d events that day, starting with %s at %s.",
				len(events), events[0].Name, events[0].Start.Format("3:04 PM")))
		}
	}

	if len(analysis.SuggestedSlots) > 0 {
		slot := analysis.SuggestedSlots[0]
		switch slot.Kind {
		case SlotBetweenEvents:
			parts = append(parts, fmt.Sprintf(
				"How about between your appointments? %s to %s would give you enough time for your %s with buffer time to spare!",
				slot.Start.Format("3:04 PM"), slot.End.Format("3:04 PM"), serviceType))
		case SlotFreeDay:
			parts = append(parts, fmt.Sprintf(
				"Your calendar is free that day! I'd suggest late morning or early afternoon when you have plenty of time to enjoy your %s.",
				serviceType))
		default:
			parts = append(parts, fmt.Sprintf("I'd suggest around %s - %s.",
				slot.Start.Format("3:04 PM"), strings.ToLower(slot.Note)))
		}
	}

	if len(analysis.DayBeforeSuggestions) > 0 {
		s := analysis.DayBeforeSuggestions[0]
		parts = append(parts, fmt.Sprintf(
			"I noticed you have %s on %s! How about getting your %s done the day before on %s around %s? That way you'll look fresh and have plenty of time to get ready for your big event!",
			s.EventName, s.EventDate.Format("Monday, January 2"), serviceType,
			s.SuggestedDay.Format("Monday, January 2"), s.SuggestedTime))
	}

	return strings.Join(parts, " ")
}

// mergeScoredEvents folds model ratings into the keyword matches. Only
// events the model rates 7 or higher are added; existing matches keep their
// keyword reason.
func mergeScoredEvents(existing []ImportantEvent, scored []ScoredEvent, events []Event) []ImportantEvent {
	seen := make(map[string]bool, len(existing))
	for _, imp := range existing {
		seen[strings.ToLower(imp.Name)] = true
	}
	for _, s := range scored {
		if s.ImportanceScore < 7 || seen[strings.ToLower(s.Name)] {
			continue
		}
		for _, e := range events {
			if strings.EqualFold(e.Name, s.Name) {
				existing = append(existing, ImportantEvent{Event: e, Reason: s.Reason})
				seen[strings.ToLower(s.Name)] = true
				break
			}
		}
	}
	return existing
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
