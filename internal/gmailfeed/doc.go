// Package gmailfeed adapts Gmail inboxes to the normalized mail feed.
//
// Each fetch lists one page of inbox message IDs and pulls the full
// payloads concurrently, decoding base64url bodies from the MIME part
// tree. Gmail's own page token is the fetch cursor. Read state maps to
// the UNREAD label.
package gmailfeed
