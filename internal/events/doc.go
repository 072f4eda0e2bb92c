// Package events carries asynchronous notifications out of the review core.
//
// The session engine reports completed sessions and the background state writer
// reports failed learning state writes. Neither knows who is listening: they emit
// an Event and any registered EventHandler decides what to do with it.
//
// The primary components are:
// - Event: a typed notification with a JSON payload
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
