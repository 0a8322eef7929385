package tracking

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-tracker/internal/domain"
	"github.com/ignite/outreach-tracker/internal/pkg/logger"
)

// RequestMeta carries request metadata from the HTTP layer.
type RequestMeta struct {
	SourceIP  string
	UserAgent string
}

// Service records open and click events and forwards them to the
// engagement aggregator.
type Service struct {
	repo        Repository
	agg         Aggregator
	geo         GeoResolver
	baseURL     string
	fallbackURL string
	now         func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a tracking service. geo may be nil to disable
// location enrichment.
func NewService(repo Repository, agg Aggregator, geo GeoResolver, baseURL, fallbackURL string, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		agg:         agg,
		geo:         geo,
		baseURL:     baseURL,
		fallbackURL: fallbackURL,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PixelURL builds the open-tracking pixel URL for a delivery.
func (s *Service) PixelURL(deliveryID string) string {
	return fmt.Sprintf("%s/track/email-open/%s", s.baseURL, deliveryID)
}

// ClickURL builds a click-tracking redirect URL for a delivery.
func (s *Service) ClickURL(deliveryID, target, label string) string {
	q := url.Values{}
	q.Set("url", target)
	if label != "" {
		q.Set("text", label)
	}
	return fmt.Sprintf("%s/track/email-click/%s?%s", s.baseURL, deliveryID, q.Encode())
}

// RecordOpen writes one open event and updates the aggregate. The caller
// serves the pixel no matter what this returns; the error exists only for
// server-side logging.
func (s *Service) RecordOpen(ctx context.Context, deliveryID string, meta RequestMeta) error {
	now := s.now()
	event := &domain.OpenEvent{
		ID:         uuid.New().String(),
		DeliveryID: deliveryID,
		OccurredAt: now,
		SourceIP:   meta.SourceIP,
		UserAgent:  meta.UserAgent,
		Location:   s.locate(ctx, meta.SourceIP),
	}

	if err := s.repo.InsertOpen(ctx, event); err != nil {
		return fmt.Errorf("insert open event: %w", err)
	}
	if err := s.agg.RecordOpen(ctx, deliveryID); err != nil {
		return fmt.Errorf("aggregate open: %w", err)
	}
	logger.Debug("open recorded", "delivery_id", deliveryID)
	return nil
}

// RecordClick writes one click event, updates the aggregate, and returns
// the redirect destination. The returned URL is always usable: an invalid
// or missing target degrades to the configured fallback, and recording
// failures never block the redirect.
func (s *Service) RecordClick(ctx context.Context, deliveryID, target, label string, meta RequestMeta) (string, error) {
	redirect := s.resolveTarget(target)

	now := s.now()
	event := &domain.ClickEvent{
		ID:         uuid.New().String(),
		DeliveryID: deliveryID,
		OccurredAt: now,
		TargetURL:  redirect,
		LinkLabel:  label,
		SourceIP:   meta.SourceIP,
		UserAgent:  meta.UserAgent,
		Location:   s.locate(ctx, meta.SourceIP),
	}

	if err := s.repo.InsertClick(ctx, event); err != nil {
		return redirect, fmt.Errorf("insert click event: %w", err)
	}
	if err := s.agg.RecordClick(ctx, deliveryID); err != nil {
		return redirect, fmt.Errorf("aggregate click: %w", err)
	}
	logger.Debug("click recorded", "delivery_id", deliveryID, "url", redirect)
	return redirect, nil
}

// resolveTarget validates the redirect destination. Only absolute http(s)
// URLs pass; anything else falls back so a real recipient never lands on
// a broken page because of a tracking defect.
func (s *Service) resolveTarget(target string) string {
	if target == "" {
		return s.fallbackURL
	}
	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return s.fallbackURL
	}
	return target
}

func (s *Service) locate(ctx context.Context, ip string) string {
	if s.geo == nil || ip == "" {
		return ""
	}
	return s.geo.Resolve(ctx, ip)
}
