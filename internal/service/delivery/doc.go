// Package delivery records sent emails and their status transitions.
//
// The send pipeline calls Create before distributing any tracking link for
// a delivery; Create also inserts the zeroed engagement aggregate in the
// same transaction so no tracking event can ever arrive without a row to
// update.
package delivery
