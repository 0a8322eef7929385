package engagement

import (
	"context"
	"time"

	"github.com/ignite/outreach-tracker/internal/domain"
)

// Repository defines the data access contract for engagement aggregates.
// Implementations must be safe for concurrent use, and every Record*
// method must apply its update as one atomic conditional operation: two
// concurrent calls for the same delivery may never both observe the
// "first event" state.
type Repository interface {
	// CreateFromDelivery inserts a zeroed aggregate row for the delivery,
	// copying lead and campaign IDs from the delivery record. It is a
	// no-op if the row already exists and returns ErrNotFound if the
	// delivery itself is unknown.
	CreateFromDelivery(ctx context.Context, deliveryID string) error

	// RecordOpen applies one open: sets is_opened/first_opened_at/
	// time_to_open once, bumps open_count and last_opened_at always.
	// Returns ErrNotFound if no aggregate row exists.
	RecordOpen(ctx context.Context, deliveryID string, now time.Time) error

	// RecordClick mirrors RecordOpen for clicks.
	RecordClick(ctx context.Context, deliveryID string, now time.Time) error

	// RecordSecureAccess sets the one-time secure-access milestone.
	// Subsequent calls are no-ops.
	RecordSecureAccess(ctx context.Context, deliveryID string, now time.Time) error

	// RecordOtpVerified sets the one-time OTP-verified milestone.
	RecordOtpVerified(ctx context.Context, deliveryID string, now time.Time) error

	// MarkDelivered sets is_delivered once.
	MarkDelivered(ctx context.Context, deliveryID string, now time.Time) error

	// Get returns the aggregate for a delivery, or ErrNotFound.
	Get(ctx context.Context, deliveryID string) (*domain.Engagement, error)

	// LeadSummary aggregates all engagement rows for a lead, optionally
	// restricted to one campaign (empty campaignID means all).
	LeadSummary(ctx context.Context, leadID, campaignID string) (*Summary, error)

	// GlobalStats aggregates across all deliveries.
	GlobalStats(ctx context.Context) (*Stats, error)
}

// Summary is the per-lead engagement rollup.
type Summary struct {
	TotalEmails    int     `json:"total_emails"`
	Delivered      int     `json:"delivered"`
	Opened         int     `json:"opened"`
	Clicked        int     `json:"clicked"`
	SecureAccessed int     `json:"secure_accessed"`
	OtpVerified    int     `json:"otp_verified"`
	EngagementRate float64 `json:"engagement_rate"`
	ClickRate      float64 `json:"click_through_rate"`
	ConversionRate float64 `json:"conversion_rate"`
}

// Stats is the global engagement rollup.
type Stats struct {
	TotalDeliveries   int     `json:"total_deliveries"`
	TotalOpens        int     `json:"total_opens"`
	TotalClicks       int     `json:"total_clicks"`
	TotalSecureAccess int     `json:"total_secure_access"`
	TotalOtpVerified  int     `json:"total_otp_verified"`
	OpenRate          float64 `json:"open_rate"`
	ClickRate         float64 `json:"click_rate"`
	ConversionRate    float64 `json:"conversion_rate"`
}
