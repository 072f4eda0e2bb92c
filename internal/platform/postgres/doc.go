// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package: the card catalog and
// the learning state tracker. Connections use the pgx database/sql driver and the
// schema is managed by embedded goose migrations.
package postgres
