package domain

import "time"

// SecureLink is a report-access grant for one (lead, campaign) pair. The
// token is opaque and carries no decodable structure. Expiry is derived
// from ExpiresAt at check time; IsActive flips only on explicit revocation,
// never on expiry, so the audit trail distinguishes the two.
type SecureLink struct {
	ID         string `json:"id"`
	Token      string `json:"-"`
	LeadID     string `json:"lead_id"`
	CampaignID string `json:"campaign_id"`
	// RecipientEmail/RecipientName are the lead's on-file contact details,
	// captured at issue time so the OTP gate never needs the lead store.
	RecipientEmail string     `json:"-"`
	RecipientName  string     `json:"-"`
	ExpiresAt      time.Time  `json:"expires_at"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	AccessCount    int        `json:"access_count"`

	OtpCode        string     `json:"-"`
	OtpIssuedAt    *time.Time `json:"otp_issued_at,omitempty"`
	OtpAttempts    int        `json:"-"`
	OtpLockedUntil *time.Time `json:"-"`
	OtpVerified    bool       `json:"otp_verified"`
	OtpVerifiedAt  *time.Time `json:"otp_verified_at,omitempty"`
}

// IsExpired reports whether the link is past its expiry at the given time.
func (l *SecureLink) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// SecureLinkAccess is one per-visit audit row. Exactly one row is written
// for every visit to a secure-link endpoint, valid or not.
type SecureLinkAccess struct {
	ID           string    `json:"id"`
	SecureLinkID string    `json:"secure_link_id"`
	OccurredAt   time.Time `json:"occurred_at"`
	SourceIP     string    `json:"source_ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	Location     string    `json:"location,omitempty"`
	OtpVerified  bool      `json:"otp_verified"`
}
