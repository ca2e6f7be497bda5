package gmailfeed

import (
	"encoding/base64"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/mailfeed"
)

// normalizeMessage converts one Gmail message into the normalized shape.
// The account email keys the deterministic message ID.
func normalizeMessage(acct account.Account, msg *gmail.Message) mailfeed.Message {
	subject := headerValue(msg, "Subject")
	from := headerValue(msg, "From")
	to := headerValue(msg, "To")

	text, html := extractBodies(msg.Payload)
	if text == "" && msg.Snippet != "" {
		text = msg.Snippet
	}

	return mailfeed.Message{
		ID:                mailfeed.MessageID(account.ProviderGmail, acct.Email, msg.Id),
		ProviderMessageID: msg.Id,
		ThreadID:          msg.ThreadId,
		AccountName:       acct.Name(),
		ProviderType:      "gmail",
		Subject:           mailfeed.OrSubject(subject),
		From:              mailfeed.OrSender(from),
		To:                to,
		Date:              mailfeed.OrNow(internalDate(msg)),
		BodyText:          text,
		BodyHTML:          html,
		IsRead:            !hasLabel(msg, "UNREAD"),
		Snippet:           mailfeed.Snippet(text),
	}
}

func headerValue(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func hasLabel(msg *gmail.Message, label string) bool {
	for _, l := range msg.LabelIds {
		if l == label {
			return true
		}
	}
	return false
}

// internalDate converts Gmail's millisecond epoch timestamp. Zero means
// absent and the caller substitutes the current time.
func internalDate(msg *gmail.Message) time.Time {
	if msg.InternalDate == 0 {
		return time.Time{}
	}
	return time.UnixMilli(msg.InternalDate).UTC()
}

// extractBodies walks the payload tree for the plain-text and HTML
// bodies. A part's direct body data is preferred over descending into
// its sub-parts, and within each content type the first leaf found wins.
func extractBodies(part *gmail.MessagePart) (text, html string) {
	if part == nil {
		return "", ""
	}

	if part.Body != nil && part.Body.Data != "" {
		decoded := decodeBody(part.Body.Data)
		switch {
		case strings.HasPrefix(part.MimeType, "text/plain") && text == "":
			return decoded, html
		case strings.HasPrefix(part.MimeType, "text/html") && html == "":
			return text, decoded
		}
	}

	for _, sub := range part.Parts {
		subText, subHTML := extractBodies(sub)
		if text == "" {
			text = subText
		}
		if html == "" {
			html = subHTML
		}
		if text != "" && html != "" {
			break
		}
	}
	return text, html
}

// decodeBody decodes Gmail's base64url body data, tolerating both padded
// and unpadded encodings. Undecodable data yields an empty body.
func decodeBody(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}
