// Package domain contains the core vocabulary entities: catalog cards, per-user
// learning states, review outcomes and the statuses derived from them. It has no
// dependencies on storage or delivery code.
package domain
