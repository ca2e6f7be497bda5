package graphmail

import (
	"strings"
	"time"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/mailfeed"
)

// messageListing is one page of the Graph message collection. NextLink
// carries the opaque continuation URL when more messages exist.
type messageListing struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

type graphMessage struct {
	ID               string       `json:"id"`
	ConversationID   string       `json:"conversationId"`
	Subject          string       `json:"subject"`
	From             *recipient   `json:"from"`
	ToRecipients     []recipient  `json:"toRecipients"`
	ReceivedDateTime time.Time    `json:"receivedDateTime"`
	BodyPreview      string       `json:"bodyPreview"`
	Body             *messageBody `json:"body"`
	IsRead           bool         `json:"isRead"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// normalizeMessage converts one Graph message into the normalized shape.
// The account email keys the deterministic message ID.
func normalizeMessage(acct account.Account, gm graphMessage) mailfeed.Message {
	html := ""
	text := gm.BodyPreview
	if gm.Body != nil {
		if strings.EqualFold(gm.Body.ContentType, "html") {
			html = gm.Body.Content
		} else if text == "" {
			text = gm.Body.Content
		}
	}

	return mailfeed.Message{
		ID:                mailfeed.MessageID(account.ProviderMicrosoft, acct.Email, gm.ID),
		ProviderMessageID: gm.ID,
		ThreadID:          gm.ConversationID,
		AccountName:       acct.Name(),
		ProviderType:      "microsoft",
		Subject:           mailfeed.OrSubject(gm.Subject),
		From:              mailfeed.OrSender(formatRecipient(gm.From)),
		To:                formatRecipients(gm.ToRecipients),
		Date:              mailfeed.OrNow(gm.ReceivedDateTime),
		BodyText:          text,
		BodyHTML:          html,
		IsRead:            gm.IsRead,
		Snippet:           mailfeed.Snippet(text),
	}
}

func formatRecipient(r *recipient) string {
	if r == nil {
		return ""
	}
	if r.EmailAddress.Name != "" && r.EmailAddress.Name != r.EmailAddress.Address {
		return r.EmailAddress.Name + " <" + r.EmailAddress.Address + ">"
	}
	return r.EmailAddress.Address
}

func formatRecipients(rs []recipient) string {
	parts := make([]string, 0, len(rs))
	for i := range rs {
		if s := formatRecipient(&rs[i]); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
