// Package account defines the mailbox account model shared by all
// provider adapters, and the Store interface through which accounts are
// read and refreshed tokens are written back.
package account
