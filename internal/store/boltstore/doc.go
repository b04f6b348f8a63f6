// Package boltstore implements the server's persistence on a single bbolt file.
//
// Users, messages and groups are stored as JSON values keyed by id.
// Conversations are nested buckets of sequence-numbered message ids, so
// history reads back in creation order. Deleted messages stay as tombstones
// and are skipped by history reads.
package boltstore
