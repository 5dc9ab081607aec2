// Package mail reads bank notification messages from a Gmail mailbox.
//
// The OAuth credential for the mailbox lives in the vault under a single
// well-known user id. Gmail owns the consent flow (AuthCodeURL and
// HandleCallback), keeps the vaulted credential fresh, and lists recent
// messages matching a search query as plain "Subject: ...\nBody: ..." texts,
// newest first.
package mail
