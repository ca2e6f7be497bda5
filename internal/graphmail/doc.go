// Package graphmail adapts Microsoft 365 inboxes to the normalized mail
// feed via the Graph REST API.
//
// Pagination uses Graph's own @odata.nextLink URL as the fetch cursor,
// followed verbatim. Access tokens come from the token manager's silent
// refresh flow; an account without a cached refresh credential cannot be
// served until the user re-authorizes.
package graphmail
