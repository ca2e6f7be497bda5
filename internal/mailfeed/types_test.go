package mailfeed

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedbox/sharedbox/internal/account"
)

func TestMessageIDDeterministic(t *testing.T) {
	a := MessageID(account.ProviderIMAP, "Lab", "42")
	b := MessageID(account.ProviderIMAP, "Lab", "42")
	assert.Equal(t, a, b)
	assert.Equal(t, "imap_Lab_42", a)

	assert.Equal(t, "gmail_jane@gmail.com_m1", MessageID(account.ProviderGmail, "jane@gmail.com", "m1"))
	assert.Equal(t, "microsoft_jane@outlook.com_g1", MessageID(account.ProviderMicrosoft, "jane@outlook.com", "g1"))
}

func TestMessageIDNoCrossProviderCollision(t *testing.T) {
	seen := map[string]bool{}
	for _, provider := range []account.Provider{account.ProviderIMAP, account.ProviderGmail, account.ProviderMicrosoft} {
		id := MessageID(provider, "same@example.com", "same-id")
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestOrSubjectAndOrSender(t *testing.T) {
	assert.Equal(t, NoSubject, OrSubject(""))
	assert.Equal(t, "hi", OrSubject("hi"))
	assert.Equal(t, UnknownSender, OrSender(""))
	assert.Equal(t, "a@b.com", OrSender("a@b.com"))
}

func TestSnippetRuneSafe(t *testing.T) {
	short := "short text"
	assert.Equal(t, short, Snippet(short))

	long := strings.Repeat("é", SnippetLength+50)
	got := Snippet(long)
	assert.Equal(t, SnippetLength, len([]rune(got)))
	assert.True(t, strings.HasPrefix(long, got))
}

func TestOrNow(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, OrNow(fixed))

	got := OrNow(time.Time{})
	assert.False(t, got.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), got, time.Minute)
}

func TestResultJSONShape(t *testing.T) {
	result := Result{
		Messages: []Message{{
			ID:      "gmail_jane@gmail.com_m1",
			Subject: "hi",
			Date:    time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC),
		}},
		Pagination: map[string]PageInfo{
			"jane@gmail.com":  {Cursor: "page2", HasMore: true},
			"ops@lab.example": {HasMore: false},
		},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	body := string(data)
	assert.Contains(t, body, `"emails"`)
	assert.Contains(t, body, `"pagination"`)
	assert.Contains(t, body, `"nextPageToken":"page2"`)
	assert.Contains(t, body, `"hasMore":true`)
	assert.Contains(t, body, `"hasMore":false`)
	assert.NotContains(t, body, `"nextPageToken":""`, "empty cursors are omitted")
}
