// Package state keeps per-user conversation sessions in memory.
// Sessions are never persisted; a restart forgets every conversation.
package state
