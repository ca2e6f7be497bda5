// Package token manages OAuth access-token freshness for mail accounts.
//
// Each resolve call checks the cached token against a 60-second staleness
// margin and, when stale, performs the provider's refresh exchange: the
// stored refresh token for Gmail, or the credential cached under the
// account handle for Microsoft. A failed refresh degrades to the last
// known token instead of failing the fetch, since the old token may
// coincidentally still be accepted.
//
// Credentials are passed in per call and never shared between accounts,
// so concurrent fetches cannot race on token state.
package token
