// Package store persists mail accounts in a local SQLite database.
//
// The aggregation engine treats the store as an external account
// document source: it reads accounts and writes back refreshed tokens,
// nothing else. Account creation happens through the authorization
// service; Upsert exists for seeding and tests.
package store
