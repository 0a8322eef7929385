// Package engagement maintains the per-delivery engagement aggregate.
//
// The aggregate row is owned exclusively by this package: every component
// that records an open, click, secure access, or OTP verification goes
// through the Service here, and no other code writes to the engagement
// table. First-event fields (first_*_at, time_to_*) are written once and
// never overwritten; counts and last_*_at move on every event. The
// repository contract requires each update to be a single atomic
// conditional operation so concurrent events cannot both claim the first
// slot.
//
// Repository implementations live in repository/postgres/ and
// repository/memory/.
package engagement
