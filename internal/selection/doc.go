// Package selection derives review candidates and annotated card listings from the
// card catalog and a user's learning states.
//
// Everything here is a pure function of its inputs. Output always follows catalog
// order and is never shuffled, so the same catalog, states and filter produce the
// same sequence every time.
package selection
