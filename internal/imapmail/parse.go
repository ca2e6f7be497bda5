package imapmail

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/mailfeed"
)

// Placeholder content used when a raw message cannot be decoded. The
// message still appears in the list so clients keep a stable window.
const (
	parseErrorSubject = "Error parsing email"
	parseErrorBody    = "Error parsing email content"
)

// messageFromRaw parses one raw RFC 5322 message into the normalized
// shape. On any decode failure it returns the placeholder record for the
// same UID instead of dropping the message.
func messageFromRaw(acct account.Account, uid uint32, seen bool, raw []byte) mailfeed.Message {
	host := ""
	if acct.IMAP != nil {
		host = acct.IMAP.Host
	}

	if len(raw) == 0 {
		return placeholderMessage(acct, uid, host)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return placeholderMessage(acct, uid, host)
	}
	defer mr.Close()

	header := mr.Header

	messageID, _ := header.MessageID()
	if messageID == "" {
		messageID = fmt.Sprintf("%d@%s", uid, host)
	}

	threadID := messageID
	if inReplyTo, err := header.MsgIDList("In-Reply-To"); err == nil && len(inReplyTo) > 0 {
		threadID = inReplyTo[0]
	}

	from := ""
	if addrs, err := header.AddressList("From"); err == nil && len(addrs) > 0 {
		from = formatAddressList(addrs)
	}
	to := ""
	if addrs, err := header.AddressList("To"); err == nil && len(addrs) > 0 {
		to = formatAddressList(addrs)
	}

	date, _ := header.Date()

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	subject, _ := header.Subject()

	return mailfeed.Message{
		ID:                mailfeed.MessageID(account.ProviderIMAP, acct.Name(), fmt.Sprint(uid)),
		ProviderMessageID: messageID,
		ThreadID:          threadID,
		AccountName:       acct.Name(),
		ProviderType:      "imap",
		Subject:           mailfeed.OrSubject(subject),
		From:              mailfeed.OrSender(from),
		To:                to,
		Date:              mailfeed.OrNow(date),
		BodyText:          textBody,
		BodyHTML:          htmlBody,
		IsRead:            seen,
		Snippet:           mailfeed.Snippet(textBody),
	}
}

// placeholderMessage builds the substitute record for a message whose
// body failed to decode, preserving list continuity.
func placeholderMessage(acct account.Account, uid uint32, host string) mailfeed.Message {
	return mailfeed.Message{
		ID:                mailfeed.MessageID(account.ProviderIMAP, acct.Name(), fmt.Sprint(uid)),
		ProviderMessageID: fmt.Sprintf("%d@%s", uid, host),
		ThreadID:          fmt.Sprint(uid),
		AccountName:       acct.Name(),
		ProviderType:      "imap",
		Subject:           parseErrorSubject,
		From:              mailfeed.UnknownSender,
		To:                "",
		Date:              mailfeed.OrNow(time.Time{}),
		BodyText:          parseErrorBody,
		BodyHTML:          "<div>" + parseErrorBody + "</div>",
		IsRead:            false,
		Snippet:           parseErrorBody,
	}
}

func formatAddressList(addrs []*mail.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.Name, a.Address))
		} else {
			parts = append(parts, a.Address)
		}
	}
	return strings.Join(parts, ", ")
}
