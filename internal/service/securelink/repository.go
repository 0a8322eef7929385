package securelink

import (
	"context"
	"time"

	"github.com/ignite/outreach-tracker/internal/domain"
)

// Repository defines the data access contract for secure links and their
// access log. Implementations must be safe for concurrent use; counter and
// attempt updates must be atomic at the storage layer.
type Repository interface {
	// Insert persists a newly issued link.
	Insert(ctx context.Context, link *domain.SecureLink) error

	// GetByToken returns the link for an exact token match, or ErrNotFound.
	GetByToken(ctx context.Context, token string) (*domain.SecureLink, error)

	// RecordVisit atomically increments access_count and sets
	// last_accessed_at for an active visit.
	RecordVisit(ctx context.Context, id string, now time.Time) error

	// Extend pushes expires_at forward on a non-revoked link and returns
	// the new expiry. ErrNotFound if the token is unknown, ErrRevoked if
	// the link was deactivated.
	Extend(ctx context.Context, token string, newExpiry time.Time) (time.Time, error)

	// Revoke deactivates a link. ErrNotFound if the token is unknown.
	Revoke(ctx context.Context, token string) error

	// SetOtpChallenge stores a freshly minted code, its issue time, and
	// resets the attempt counter and lockout.
	SetOtpChallenge(ctx context.Context, id, code string, issuedAt time.Time) error

	// RegisterFailedOtp atomically bumps the attempt counter, applying
	// lockedUntil once maxAttempts is reached. Returns the new counter.
	RegisterFailedOtp(ctx context.Context, id string, maxAttempts int, lockedUntil time.Time) (int, error)

	// MarkOtpVerified sets otp_verified and its timestamp.
	MarkOtpVerified(ctx context.Context, id string, now time.Time) error

	// InsertAccess appends one audit row.
	InsertAccess(ctx context.Context, access *domain.SecureLinkAccess) error

	// ListAccesses returns the audit rows for a link, oldest first.
	ListAccesses(ctx context.Context, linkID string) ([]domain.SecureLinkAccess, error)
}

// DeliveryLookup resolves the delivery a secure link's engagement updates
// attach to. Implemented by the delivery repository.
type DeliveryLookup interface {
	// LatestForLeadCampaign returns the most recent delivery for the
	// (lead, campaign) pair, or an error if none exists.
	LatestForLeadCampaign(ctx context.Context, leadID, campaignID string) (*domain.Delivery, error)
}
