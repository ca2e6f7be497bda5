package mailfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/token"
)

// SnippetLength bounds the plain-text preview attached to each message.
const SnippetLength = 200

// PageSize is the number of messages fetched per account per page,
// uniform across providers.
const PageSize = 20

// Message is the canonical message record every provider normalizes into.
//
// ID is deterministic from (provider, account, provider message id), so
// repeated fetches of the same message always produce the same ID and
// collisions across providers and accounts are impossible.
type Message struct {
	ID                string    `json:"id"`
	ProviderMessageID string    `json:"messageId"`
	ThreadID          string    `json:"threadId,omitempty"`
	AccountName       string    `json:"accountName"`
	ProviderType      string    `json:"accountType"`
	Subject           string    `json:"subject"`
	From              string    `json:"from"`
	To                string    `json:"to"`
	Date              time.Time `json:"date"`
	BodyText          string    `json:"text"`
	BodyHTML          string    `json:"html"`
	IsRead            bool      `json:"isRead"`
	Snippet           string    `json:"snippet"`
}

// Page is one adapter fetch result: a window of normalized messages, the
// cursor for the next window (empty when the provider has no more, or
// never pages), and the token outcome when OAuth was involved.
type Page struct {
	Messages   []Message
	NextCursor string
	Token      *token.Outcome
}

// Adapter is the uniform fetch contract over one mail provider. A cursor
// is opaque and must only ever be passed back to the adapter that issued
// it.
//
// FetchPage may return an error; the orchestrator absorbs it into an
// empty result for that account. Adapters must not panic across this
// boundary.
type Adapter interface {
	// Provider identifies which accounts this adapter serves.
	Provider() account.Provider

	// FetchPage fetches the next window of inbox messages.
	FetchPage(ctx context.Context, acct account.Account, cursor string) (Page, error)

	// MarkRead marks one message as read. Adapters without a read-state
	// concept return nil.
	MarkRead(ctx context.Context, acct account.Account, providerMessageID string) error
}

// PageInfo is the per-account pagination state in an aggregated result.
type PageInfo struct {
	Cursor  string `json:"nextPageToken,omitempty"`
	HasMore bool   `json:"hasMore"`
}

// Result is the merged output of one aggregation call. Messages are
// ordered by date descending across all accounts; Pagination has an
// entry per account that produced a page.
type Result struct {
	Messages   []Message           `json:"emails"`
	Pagination map[string]PageInfo `json:"pagination"`
}

// MessageID builds the provider-namespaced synthetic message id.
// The accountKey is the account email for OAuth providers and the
// account display name for IMAP, matching the ids the normalized feed
// has always exposed.
func MessageID(provider account.Provider, accountKey, providerMessageID string) string {
	prefix := "imap"
	switch provider {
	case account.ProviderGmail:
		prefix = "gmail"
	case account.ProviderMicrosoft:
		prefix = "microsoft"
	}
	return fmt.Sprintf("%s_%s_%s", prefix, accountKey, providerMessageID)
}
