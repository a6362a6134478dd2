// Package model holds the data types shared across the monitor: the
// StateChangeEvent delivered to callbacks and the EntityState record a
// hub reports for a single entity.
//
// A StateChangeEvent is built once by the dispatcher and never mutated
// afterwards; the dispatcher keeps no reference to it after the callback
// returns.
package model
