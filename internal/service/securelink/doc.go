// Package securelink implements the report-access link lifecycle and the
// OTP gate layered on top of it.
//
// A link is issued per (lead, campaign) with an opaque crypto-random token
// and a 7-day expiry. Visiting the link always leaves one audit row, valid
// or not. The first active visit mints a 6-digit one-time code and emails
// it to the recipient on file; verifying the code unlocks the detailed
// report. Expiry is a derived, time-based check: links are deactivated only
// by explicit revocation so the audit trail can tell the two apart.
package securelink
