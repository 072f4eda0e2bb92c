// Package sqlite implements the card catalog and learning state tracker on an
// embedded SQLite database through the pure-Go modernc.org/sqlite driver. It is
// the default backend for single-user and local installs.
//
// Timestamps are stored as INTEGER Unix nanoseconds in UTC and IDs as TEXT.
package sqlite
