package mailfeed

import "time"

// Placeholder values applied uniformly regardless of source provider.
const (
	NoSubject     = "(No Subject)"
	UnknownSender = "Unknown"
)

// OrSubject returns the subject or the uniform placeholder when absent.
func OrSubject(subject string) string {
	if subject == "" {
		return NoSubject
	}
	return subject
}

// OrSender returns the sender or the uniform placeholder when absent.
func OrSender(from string) string {
	if from == "" {
		return UnknownSender
	}
	return from
}

// Snippet returns a bounded-length plain-text preview. Truncation is by
// rune so a multi-byte character is never split.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= SnippetLength {
		return text
	}
	return string(runes[:SnippetLength])
}

// OrNow returns the date, or the current UTC instant when the provider
// omitted one. A message date is never zero in the normalized feed.
func OrNow(date time.Time) time.Time {
	if date.IsZero() {
		return time.Now().UTC()
	}
	return date
}
