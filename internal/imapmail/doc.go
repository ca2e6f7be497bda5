// Package imapmail implements the mail fetch contract for plain IMAP
// accounts using go-imap v2.
//
// The adapter fetches only the trailing window of the most recent
// messages per call. There is no real pagination for this provider;
// every call re-fetches the same window and no cursor is ever issued.
// Raw messages are decoded with go-message; a message that fails to
// decode is replaced by a placeholder record rather than dropped.
package imapmail
