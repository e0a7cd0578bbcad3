// Package storage provides pluggable persistence for evidence packs.
//
// The Backend interface abstracts the object-store operations the
// retention manager needs: metadata, immutability windows, existence,
// and deletion. Local stores packs on the filesystem with a
// .retention/ sidecar directory for metadata; Memory backs tests.
//
// Index is an SQLite catalog of persisted packs for query and audit.
// It records locations and checksums, never pack content.
package storage
