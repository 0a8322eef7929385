// Package tracking records open and click events from recipient mail
// clients.
//
// Recording is best-effort telemetry, never a gate: the open path must
// always produce the pixel and the click path must always produce a
// redirect, whatever happens inside. Failures are logged server-side and
// swallowed before they can reach the remote party.
package tracking
