package imapmail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedbox/sharedbox/internal/account"
)

func imapAccount() account.Account {
	return account.Account{
		ID:          "acc-imap",
		Provider:    account.ProviderIMAP,
		Email:       "ops@lab.example",
		DisplayName: "Lab",
		IMAP: &account.IMAPCredentials{
			Host:     "mail.lab.example",
			Port:     993,
			User:     "ops",
			Password: "hunter2",
			UseTLS:   true,
		},
	}
}

const sampleMessage = "Message-ID: <abc123@lab.example>\r\n" +
	"From: Jane Doe <jane@example.com>\r\n" +
	"To: ops@lab.example\r\n" +
	"Subject: Weekly report\r\n" +
	"Date: Mon, 02 Jun 2025 10:30:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"The report body.\r\n"

func TestFetchWindow(t *testing.T) {
	tests := []struct {
		total     uint32
		wantStart uint32
		wantEnd   uint32
	}{
		{5, 1, 5},
		{100, 81, 100},
		{20, 1, 20},
		{21, 2, 21},
		{1, 1, 1},
	}

	for _, tt := range tests {
		start, end := fetchWindow(tt.total)
		assert.Equal(t, tt.wantStart, start, "start for total=%d", tt.total)
		assert.Equal(t, tt.wantEnd, end, "end for total=%d", tt.total)
	}
}

func TestMessageFromRaw(t *testing.T) {
	acct := imapAccount()
	m := messageFromRaw(acct, 42, true, []byte(sampleMessage))

	assert.Equal(t, "imap_Lab_42", m.ID)
	assert.Equal(t, "abc123@lab.example", m.ProviderMessageID)
	assert.Equal(t, "Weekly report", m.Subject)
	assert.Equal(t, "Jane Doe <jane@example.com>", m.From)
	assert.Equal(t, "ops@lab.example", m.To)
	assert.Equal(t, "imap", m.ProviderType)
	assert.Equal(t, "Lab", m.AccountName)
	assert.True(t, m.IsRead)
	assert.Contains(t, m.BodyText, "The report body.")
	assert.Equal(t, time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC), m.Date.UTC())
	assert.Contains(t, m.Snippet, "The report body.")
}

func TestMessageFromRawIDIsStable(t *testing.T) {
	acct := imapAccount()
	first := messageFromRaw(acct, 42, false, []byte(sampleMessage))
	second := messageFromRaw(acct, 42, false, []byte(sampleMessage))
	assert.Equal(t, first.ID, second.ID)
}

func TestMessageFromRawParseFailure(t *testing.T) {
	acct := imapAccount()

	// Empty raw bodies and garbage both degrade to the placeholder.
	for _, raw := range [][]byte{nil, []byte("\x00\x01 not a message")} {
		m := messageFromRaw(acct, 7, false, raw)
		assert.Equal(t, parseErrorSubject, m.Subject)
		assert.Equal(t, "Unknown", m.From)
		assert.Equal(t, "imap_Lab_7", m.ID)
		assert.Equal(t, parseErrorBody, m.BodyText)
		assert.False(t, m.Date.IsZero(), "placeholder date must never be zero")
	}
}

func TestMessageFromRawMultipart(t *testing.T) {
	raw := "Message-ID: <mp@lab.example>\r\n" +
		"From: jane@example.com\r\n" +
		"Subject: Mixed\r\n" +
		"Date: Mon, 02 Jun 2025 10:30:00 +0000\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUNDARY\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html body</p>\r\n" +
		"--BOUNDARY--\r\n"

	m := messageFromRaw(imapAccount(), 9, false, []byte(raw))
	assert.Contains(t, m.BodyText, "plain body")
	assert.Contains(t, m.BodyHTML, "html body")
	assert.Equal(t, "Mixed", m.Subject)
}

func TestMessageFromRawMissingHeadersUsePlaceholders(t *testing.T) {
	raw := "Message-ID: <bare@lab.example>\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"body only\r\n"

	m := messageFromRaw(imapAccount(), 3, false, []byte(raw))
	assert.Equal(t, "(No Subject)", m.Subject)
	assert.Equal(t, "Unknown", m.From)
	assert.False(t, m.Date.IsZero())
}

func TestMessageFromRawLongBodySnippet(t *testing.T) {
	body := strings.Repeat("x", 500)
	raw := "From: a@b.com\r\nSubject: Long\r\nContent-Type: text/plain\r\n\r\n" + body

	m := messageFromRaw(imapAccount(), 1, false, []byte(raw))
	require.LessOrEqual(t, len([]rune(m.Snippet)), 200)
}

func TestPlaceholderThreadIDFromUID(t *testing.T) {
	m := placeholderMessage(imapAccount(), 55, "mail.lab.example")
	assert.Equal(t, "55", m.ThreadID)
	assert.Equal(t, "55@mail.lab.example", m.ProviderMessageID)
}
