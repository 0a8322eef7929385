package delivery

import (
	"context"
	"time"

	"github.com/ignite/outreach-tracker/internal/domain"
)

// Repository defines the data access contract for deliveries and their raw
// event streams. Implementations must be safe for concurrent use.
type Repository interface {
	// Create inserts the delivery and its zeroed engagement aggregate in
	// a single transaction.
	Create(ctx context.Context, d *domain.Delivery) error

	// Get returns one delivery, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Delivery, error)

	// LatestForLeadCampaign returns the most recent delivery for the
	// (lead, campaign) pair, or ErrNotFound.
	LatestForLeadCampaign(ctx context.Context, leadID, campaignID string) (*domain.Delivery, error)

	// UpdateStatus transitions the delivery status and stamps the
	// matching timestamp column. errMsg is recorded for bounces/failures.
	UpdateStatus(ctx context.Context, id string, status domain.DeliveryStatus, at time.Time, errMsg string) error

	// ListOpens returns the raw open events for a delivery, oldest first.
	ListOpens(ctx context.Context, deliveryID string) ([]domain.OpenEvent, error)

	// ListClicks returns the raw click events for a delivery, oldest first.
	ListClicks(ctx context.Context, deliveryID string) ([]domain.ClickEvent, error)
}
