package calfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

type graphEventListing struct {
	Value []graphEvent `json:"value"`
}

type graphEvent struct {
	ID        string          `json:"id"`
	Subject   string          `json:"subject"`
	Preview   string          `json:"bodyPreview"`
	Start     graphDateTime   `json:"start"`
	End       graphDateTime   `json:"end"`
	Location  graphLocation   `json:"location"`
	Organizer *graphRecipient `json:"organizer"`
	Attendees []graphAttendee `json:"attendees"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

type graphRecipient struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphAttendee struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
	Status struct {
		Response string `json:"response"`
	} `json:"status"`
}

// fetchGraph lists the account's calendar view for the window. The
// calendarView endpoint expands recurring events server-side.
func (f *Fetcher) fetchGraph(ctx context.Context, accessToken, timeMin, timeMax string) ([]Event, error) {
	query := url.Values{}
	query.Set("startDateTime", timeMin)
	query.Set("endDateTime", timeMax)
	query.Set("$orderby", "start/dateTime")
	query.Set("$top", fmt.Sprint(maxEvents))

	requestURL := f.graphBaseURL + "/me/calendarView?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	// Graph returns event times in the requested zone without an offset
	// suffix; pin it to UTC so parsing is unambiguous.
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar view: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching calendar view, http status %s", res.Status)
	}

	var listing graphEventListing
	if err := json.NewDecoder(res.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode calendar view: %w", err)
	}

	events := make([]Event, 0, len(listing.Value))
	for _, item := range listing.Value {
		events = append(events, microsoftEvent(item))
	}
	return events, nil
}

func microsoftEvent(item graphEvent) Event {
	ev := Event{
		ID:          item.ID,
		Summary:     item.Subject,
		Description: item.Preview,
		Start:       parseEventTime(item.Start.DateTime),
		End:         parseEventTime(item.End.DateTime),
		Location:    item.Location.DisplayName,
		Source:      "microsoft",
	}
	if item.Organizer != nil {
		ev.Organizer = item.Organizer.EmailAddress.Address
	}
	for _, a := range item.Attendees {
		ev.Attendees = append(ev.Attendees, Attendee{
			Email:          a.EmailAddress.Address,
			DisplayName:    a.EmailAddress.Name,
			ResponseStatus: a.Status.Response,
		})
	}
	return ev
}
