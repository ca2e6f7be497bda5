// Package calfeed fetches calendar events for OAuth mail accounts and
// normalizes them to one provider-independent Event shape.
//
// Google accounts use the primary calendar with recurring events
// expanded; Microsoft accounts use the Graph calendarView. Calendar
// calls always force a token refresh before fetching.
package calfeed
