// Package memory provides in-process implementations of the store interfaces.
// They back the unit tests of the session engine and the background writer.
package memory
