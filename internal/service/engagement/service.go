package engagement

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/outreach-tracker/internal/domain"
	"github.com/ignite/outreach-tracker/internal/pkg/logger"
)

// Service is the single write path for engagement aggregates.
type Service struct {
	repo Repository
	now  func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an engagement service backed by the given repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RecordOpen records one open event for the delivery.
func (s *Service) RecordOpen(ctx context.Context, deliveryID string) error {
	return s.record(ctx, deliveryID, s.repo.RecordOpen)
}

// RecordClick records one click event for the delivery.
func (s *Service) RecordClick(ctx context.Context, deliveryID string) error {
	return s.record(ctx, deliveryID, s.repo.RecordClick)
}

// RecordSecureAccess records the secure-link-accessed milestone. Repeat
// calls after the first are no-ops at the storage layer.
func (s *Service) RecordSecureAccess(ctx context.Context, deliveryID string) error {
	return s.record(ctx, deliveryID, s.repo.RecordSecureAccess)
}

// RecordOtpVerified records the OTP-verified milestone.
func (s *Service) RecordOtpVerified(ctx context.Context, deliveryID string) error {
	return s.record(ctx, deliveryID, s.repo.RecordOtpVerified)
}

// MarkDelivered flips the delivered flag for the delivery.
func (s *Service) MarkDelivered(ctx context.Context, deliveryID string) error {
	return s.record(ctx, deliveryID, s.repo.MarkDelivered)
}

// record applies one update, creating the aggregate row first if it is
// missing. The row normally exists from delivery creation; the create here
// is a fallback for deliveries recorded before that invariant held.
func (s *Service) record(ctx context.Context, deliveryID string, apply func(context.Context, string, time.Time) error) error {
	now := s.now()

	err := apply(ctx, deliveryID, now)
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	if err := s.repo.CreateFromDelivery(ctx, deliveryID); err != nil {
		return err
	}
	logger.Warn("engagement row was missing, created on demand", "delivery_id", deliveryID)
	return apply(ctx, deliveryID, now)
}

// Get returns the aggregate for one delivery.
func (s *Service) Get(ctx context.Context, deliveryID string) (*domain.Engagement, error) {
	return s.repo.Get(ctx, deliveryID)
}

// LeadSummary returns the rollup for a lead, optionally one campaign.
func (s *Service) LeadSummary(ctx context.Context, leadID, campaignID string) (*Summary, error) {
	sum, err := s.repo.LeadSummary(ctx, leadID, campaignID)
	if err != nil {
		return nil, err
	}
	if sum.TotalEmails > 0 {
		sum.EngagementRate = rate(sum.Opened, sum.TotalEmails)
		sum.ClickRate = rate(sum.Clicked, sum.TotalEmails)
		sum.ConversionRate = rate(sum.OtpVerified, sum.TotalEmails)
	}
	return sum, nil
}

// GlobalStats returns the rollup across all deliveries.
func (s *Service) GlobalStats(ctx context.Context) (*Stats, error) {
	st, err := s.repo.GlobalStats(ctx)
	if err != nil {
		return nil, err
	}
	if st.TotalDeliveries > 0 {
		st.OpenRate = rate(st.TotalOpens, st.TotalDeliveries)
		st.ClickRate = rate(st.TotalClicks, st.TotalDeliveries)
		st.ConversionRate = rate(st.TotalOtpVerified, st.TotalDeliveries)
	}
	return st, nil
}

// rate returns n/total as a percentage rounded to two decimals.
func rate(n, total int) float64 {
	return float64(int(float64(n)/float64(total)*100*100+0.5)) / 100
}
