package tracking

import (
	"context"

	"github.com/ignite/outreach-tracker/internal/domain"
)

// Repository defines the append-only event store for raw tracking events.
type Repository interface {
	// InsertOpen appends one open event.
	InsertOpen(ctx context.Context, event *domain.OpenEvent) error

	// InsertClick appends one click event.
	InsertClick(ctx context.Context, event *domain.ClickEvent) error
}

// Aggregator is the slice of the engagement service this package needs.
type Aggregator interface {
	RecordOpen(ctx context.Context, deliveryID string) error
	RecordClick(ctx context.Context, deliveryID string) error
}

// GeoResolver resolves an IP to a location string, best-effort.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) string
}
