package calfeed

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// fetchGoogle lists upcoming events from the account's primary Google
// calendar, recurring events expanded.
func (f *Fetcher) fetchGoogle(ctx context.Context, accessToken, timeMin, timeMax string) ([]Event, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	opts := append([]option.ClientOption{option.WithTokenSource(source)}, f.clientOptions...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	res, err := svc.Events.List("primary").
		TimeMin(timeMin).
		TimeMax(timeMax).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxEvents).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		events = append(events, googleEvent(item))
	}
	return events, nil
}

// googleEvent converts one calendar/v3 event. All-day events carry a
// bare date instead of a datetime; both forms are accepted.
func googleEvent(item *calendar.Event) Event {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Source:      "google",
	}
	if item.Start != nil {
		if item.Start.DateTime != "" {
			ev.Start = parseEventTime(item.Start.DateTime)
		} else {
			ev.Start = parseEventTime(item.Start.Date)
		}
	}
	if item.End != nil {
		if item.End.DateTime != "" {
			ev.End = parseEventTime(item.End.DateTime)
		} else {
			ev.End = parseEventTime(item.End.Date)
		}
	}
	if item.Organizer != nil {
		ev.Organizer = item.Organizer.Email
	}
	for _, a := range item.Attendees {
		if a.Resource {
			continue
		}
		ev.Attendees = append(ev.Attendees, Attendee{
			Email:          a.Email,
			DisplayName:    a.DisplayName,
			ResponseStatus: a.ResponseStatus,
		})
	}
	return ev
}
