package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleSource reads events from a Google Calendar using a user's OAuth token.
type GoogleSource struct {
	svc        *gcal.Service
	calendarID string
}

// NewGoogleSource builds a calendar client from a user access token. An empty
// calendarID falls back to the user's primary calendar.
func NewGoogleSource(ctx context.Context, accessToken, calendarID string) (*GoogleSource, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("google calendar access token not set")
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &GoogleSource{svc: svc, calendarID: calendarID}, nil
}

func (g *GoogleSource) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	res, err := g.svc.Events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		start, okStart := eventTime(item.Start, from.Location())
		end, okEnd := eventTime(item.End, from.Location())
		if !okStart || !okEnd {
			continue
		}
		name := item.Summary
		if name == "" {
			name = "Busy"
		}
		events = append(events, Event{
			Name:     name,
			Start:    start,
			End:      end,
			Location: item.Location,
		})
	}
	return events, nil
}

func (g *GoogleSource) BusyPeriods(ctx context.Context, from, to time.Time) ([]Period, error) {
	res, err := g.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: g.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("free/busy query: %w", err)
	}

	cal, ok := res.Calendars[g.calendarID]
	if !ok {
		return nil, nil
	}
	periods := make([]Period, 0, len(cal.Busy))
	for _, b := range cal.Busy {
		start, err := time.Parse(time.RFC3339, b.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, b.End)
		if err != nil {
			continue
		}
		periods = append(periods, Period{Start: start.In(from.Location()), End: end.In(from.Location())})
	}
	return periods, nil
}

// eventTime resolves either a timed or an all-day event boundary.
func eventTime(edt *gcal.EventDateTime, loc *time.Location) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t.In(loc), true
	}
	if edt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", edt.Date, loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
