package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-tracker/internal/domain"
	"github.com/ignite/outreach-tracker/internal/pkg/logger"
)

// Aggregator is the slice of the engagement service this package needs.
type Aggregator interface {
	MarkDelivered(ctx context.Context, deliveryID string) error
}

// EngagementReader reads the aggregate for the detail view.
type EngagementReader interface {
	Get(ctx context.Context, deliveryID string) (*domain.Engagement, error)
}

// CreateInput describes a new delivery record.
type CreateInput struct {
	LeadID     string
	CampaignID string
	ToEmail    string
	Subject    string
	MessageID  string
}

// Detail bundles a delivery with its aggregate and raw event streams.
type Detail struct {
	Delivery   *domain.Delivery    `json:"delivery"`
	Engagement *domain.Engagement  `json:"engagement,omitempty"`
	Opens      []domain.OpenEvent  `json:"opens"`
	Clicks     []domain.ClickEvent `json:"clicks"`
}

// Service implements delivery bookkeeping.
type Service struct {
	repo Repository
	agg  Aggregator
	eng  EngagementReader
	now  func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a delivery service.
func NewService(repo Repository, agg Aggregator, eng EngagementReader, opts ...Option) *Service {
	s := &Service{repo: repo, agg: agg, eng: eng, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create records a sent email. The engagement row is created eagerly in
// the same transaction, so this must run before any tracking link for the
// delivery goes out.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Delivery, error) {
	if input.LeadID == "" || input.CampaignID == "" {
		return nil, fmt.Errorf("lead and campaign IDs are required")
	}
	if input.ToEmail == "" {
		return nil, fmt.Errorf("recipient email is required")
	}

	messageID := input.MessageID
	if messageID == "" {
		messageID = uuid.New().String()
	}

	d := &domain.Delivery{
		ID:         uuid.New().String(),
		LeadID:     input.LeadID,
		CampaignID: input.CampaignID,
		ToEmail:    input.ToEmail,
		Subject:    input.Subject,
		MessageID:  messageID,
		Status:     domain.DeliverySent,
		SentAt:     s.now(),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create delivery: %w", err)
	}
	logger.Info("delivery recorded", "delivery_id", d.ID, "to_email", d.ToEmail)
	return d, nil
}

// Get returns one delivery.
func (s *Service) Get(ctx context.Context, id string) (*domain.Delivery, error) {
	return s.repo.Get(ctx, id)
}

// MarkDelivered records a successful handoff reported by the transport.
func (s *Service) MarkDelivered(ctx context.Context, id string) error {
	now := s.now()
	if err := s.repo.UpdateStatus(ctx, id, domain.DeliveryDelivered, now, ""); err != nil {
		return err
	}
	if err := s.agg.MarkDelivered(ctx, id); err != nil {
		logger.Error("mark delivered aggregate update failed", "delivery_id", id, "err", err)
	}
	return nil
}

// MarkBounced records a bounce reported by the transport.
func (s *Service) MarkBounced(ctx context.Context, id, reason string) error {
	return s.repo.UpdateStatus(ctx, id, domain.DeliveryBounced, s.now(), reason)
}

// MarkFailed records a send failure reported by the transport.
func (s *Service) MarkFailed(ctx context.Context, id, reason string) error {
	return s.repo.UpdateStatus(ctx, id, domain.DeliveryFailed, s.now(), reason)
}

// Detail returns the delivery with its aggregate and raw events.
func (s *Service) Detail(ctx context.Context, id string) (*Detail, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &Detail{Delivery: d}
	if eng, err := s.eng.Get(ctx, id); err == nil {
		detail.Engagement = eng
	}
	if detail.Opens, err = s.repo.ListOpens(ctx, id); err != nil {
		return nil, fmt.Errorf("list opens: %w", err)
	}
	if detail.Clicks, err = s.repo.ListClicks(ctx, id); err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}
	return detail, nil
}
