// Package store defines the persistence contracts consumed by the review core:
// the read-only card catalog and the per-user learning state tracker. The
// interfaces keep the scheduler and session engine independent of the database
// that backs them.
package store
