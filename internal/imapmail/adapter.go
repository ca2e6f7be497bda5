package imapmail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/instrumentation"
	"github.com/sharedbox/sharedbox/internal/logging"
	"github.com/sharedbox/sharedbox/internal/mailfeed"
)

// windowSize is the trailing window of most-recent messages fetched per
// call. IMAP has no real pagination here: every call re-fetches the same
// window, so the adapter never issues a cursor. This matches the
// behavior clients have always observed and is kept deliberately.
const windowSize = 20

// Adapter fetches the most recent inbox window from a plain IMAP server.
type Adapter struct {
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewAdapter creates an IMAP adapter.
func NewAdapter(logger *slog.Logger, metrics *instrumentation.Metrics) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger, metrics: metrics}
}

// Provider implements mailfeed.Adapter.
func (a *Adapter) Provider() account.Provider {
	return account.ProviderIMAP
}

// connect dials and authenticates against the account's IMAP server.
// Certificate verification is disabled on purpose: the service routinely
// talks to lab mail servers with self-signed certificates, and the
// credentials at risk are the mailbox password already stored for the
// account. Operators accept that trade-off when adding an IMAP account.
func (a *Adapter) connect(acct account.Account) (*imapclient.Client, error) {
	creds := acct.IMAP
	addr := fmt.Sprintf("%s:%d", creds.Host, creds.Port)

	options := &imapclient.Options{
		TLSConfig: &tls.Config{
			InsecureSkipVerify: true,
			ServerName:         creds.Host,
		},
	}

	var client *imapclient.Client
	var err error
	if creds.UseTLS {
		client, err = imapclient.DialTLS(addr, options)
	} else {
		client, err = imapclient.DialStartTLS(addr, options)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server %s: %w", addr, err)
	}

	if err := client.Login(creds.User, creds.Password).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}

	return client, nil
}

// FetchPage implements mailfeed.Adapter. The cursor argument is ignored:
// this provider always returns the trailing window (see windowSize).
func (a *Adapter) FetchPage(ctx context.Context, acct account.Account, _ string) (mailfeed.Page, error) {
	logger := logging.WithAccount(a.logger, acct.Name())
	start := time.Now()

	client, err := mailfeed.WithTimeout(ctx, "imap connect", mailfeed.ConnectTimeout,
		func(context.Context) (*imapclient.Client, error) {
			return a.connect(acct)
		})
	if err != nil {
		return mailfeed.Page{}, err
	}
	defer func() {
		_ = client.Logout().Wait()
		_ = client.Close()
	}()

	messages, err := mailfeed.WithTimeout(ctx, "imap fetch", mailfeed.FetchTimeout,
		func(context.Context) ([]mailfeed.Message, error) {
			return a.fetchWindow(client, acct)
		})
	if err != nil {
		return mailfeed.Page{}, err
	}

	a.metrics.RecordFetchDuration(ctx, string(account.ProviderIMAP), time.Since(start))
	logger.Info("fetched inbox window",
		logging.Provider(string(account.ProviderIMAP)),
		slog.Int("messages", len(messages)))

	return mailfeed.Page{Messages: messages}, nil
}

// fetchWindow selects INBOX and fetches the most recent windowSize
// messages by sequence number, newest first.
func (a *Adapter) fetchWindow(client *imapclient.Client, acct account.Account) ([]mailfeed.Message, error) {
	selected, err := client.Select("INBOX", nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	total := selected.NumMessages
	if total == 0 {
		return []mailfeed.Message{}, nil
	}

	startSeq, endSeq := fetchWindow(total)

	var seqSet imap.SeqSet
	seqSet.AddRange(startSeq, endSeq)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOptions := &imap.FetchOptions{
		UID:         true,
		Flags:       true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(seqSet, fetchOptions)
	defer fetchCmd.Close()

	var messages []mailfeed.Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		raw := buf.FindBodySection(bodySection)
		m := messageFromRaw(acct, uint32(buf.UID), hasSeenFlag(buf.Flags), raw)
		if m.Subject == parseErrorSubject {
			a.logger.Warn("failed to parse message, substituting placeholder",
				logging.Account(acct.Name()),
				slog.Uint64("uid", uint64(buf.UID)))
		}
		messages = append(messages, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	// Newest-by-sequence-number first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkRead implements mailfeed.Adapter. Read-state sync back to plain
// IMAP servers is not part of the current scope, so this is a no-op.
func (a *Adapter) MarkRead(context.Context, account.Account, string) error {
	return nil
}

// Probe verifies that the account's server accepts a connection and has
// a selectable INBOX.
func (a *Adapter) Probe(ctx context.Context, acct account.Account) error {
	if acct.IMAP == nil || !acct.IMAP.Complete() {
		return fmt.Errorf("account %s has incomplete IMAP credentials", acct.Name())
	}

	_, err := mailfeed.WithTimeout(ctx, "imap probe", mailfeed.ConnectTimeout,
		func(context.Context) (struct{}, error) {
			client, err := a.connect(acct)
			if err != nil {
				return struct{}{}, err
			}
			defer func() {
				_ = client.Logout().Wait()
				_ = client.Close()
			}()
			if _, err := client.Select("INBOX", nil).Wait(); err != nil {
				return struct{}{}, fmt.Errorf("failed to select INBOX: %w", err)
			}
			return struct{}{}, nil
		})
	return err
}

// fetchWindow returns the sequence-number range covering the most recent
// windowSize messages: [max(1, total-windowSize+1), total].
func fetchWindow(total uint32) (uint32, uint32) {
	start := uint32(1)
	if total > windowSize {
		start = total - windowSize + 1
	}
	return start, total
}

func hasSeenFlag(flags []imap.Flag) bool {
	for _, f := range flags {
		if f == imap.FlagSeen {
			return true
		}
	}
	return false
}
