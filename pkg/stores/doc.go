// Package stores persists the conclave application state in SQLite: the
// proposal table, the id sequence and the active governance policy. The
// in-memory structures stay authoritative at runtime; the store loads them
// at startup and checkpoints them after mutations.
package stores
