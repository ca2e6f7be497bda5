package calfeed

import (
	"strings"
	"time"
)

// maxEvents caps one calendar window fetch.
const maxEvents = 50

// Attendee is one event participant.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

// Event is the provider-independent calendar event shape.
type Event struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Location    string     `json:"location,omitempty"`
	Organizer   string     `json:"organizer,omitempty"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	Source      string     `json:"source"`
}

// coerceRFC3339 normalizes a caller-supplied timestamp to RFC 3339.
// Callers routinely send zone-less timestamps; those are taken as UTC
// and get a Z appended. Empty input stays empty for the caller to
// default.
func coerceRFC3339(value string) string {
	if value == "" {
		return ""
	}
	if strings.HasSuffix(value, "Z") || hasZoneOffset(value) {
		return value
	}
	return value + "Z"
}

// hasZoneOffset reports whether an RFC 3339-ish timestamp carries an
// explicit +hh:mm or -hh:mm offset after its time part.
func hasZoneOffset(value string) bool {
	t := strings.IndexByte(value, 'T')
	if t < 0 {
		return false
	}
	rest := value[t+1:]
	return strings.ContainsAny(rest, "+") || strings.Count(rest, "-") > 0
}

// parseEventTime parses provider timestamps, tolerating zone-less values
// (taken as UTC) and all-day date values.
func parseEventTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
