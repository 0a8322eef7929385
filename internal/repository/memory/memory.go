// Package memory provides in-memory implementations of every repository
// contract. A single mutex guards the shared state, which makes each
// update atomic in the same way the SQL implementations are; unit tests
// exercise the service layers against it, including the concurrency
// properties.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/outreach-tracker/internal/domain"
	"github.com/ignite/outreach-tracker/internal/service/delivery"
	"github.com/ignite/outreach-tracker/internal/service/engagement"
	"github.com/ignite/outreach-tracker/internal/service/securelink"
)

// Store holds all aggregates in memory. Per-service repositories are
// obtained from it and share the same state and lock.
type Store struct {
	mu          sync.Mutex
	deliveries  map[string]*domain.Delivery
	opens       map[string][]domain.OpenEvent
	clicks      map[string][]domain.ClickEvent
	engagements map[string]*domain.Engagement
	links       map[string]*domain.SecureLink
	tokens      map[string]string // token -> link ID
	accesses    map[string][]domain.SecureLinkAccess
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		deliveries:  make(map[string]*domain.Delivery),
		opens:       make(map[string][]domain.OpenEvent),
		clicks:      make(map[string][]domain.ClickEvent),
		engagements: make(map[string]*domain.Engagement),
		links:       make(map[string]*domain.SecureLink),
		tokens:      make(map[string]string),
		accesses:    make(map[string][]domain.SecureLinkAccess),
	}
}

// Deliveries returns the delivery repository view of the store.
func (s *Store) Deliveries() *DeliveryRepo { return &DeliveryRepo{s: s} }

// Tracking returns the raw event repository view of the store.
func (s *Store) Tracking() *TrackingRepo { return &TrackingRepo{s: s} }

// Engagements returns the engagement repository view of the store.
func (s *Store) Engagements() *EngagementRepo { return &EngagementRepo{s: s} }

// SecureLinks returns the secure link repository view of the store.
func (s *Store) SecureLinks() *SecureLinkRepo { return &SecureLinkRepo{s: s} }

// DeliveryRepo implements delivery.Repository and securelink.DeliveryLookup.
type DeliveryRepo struct{ s *Store }

func (r *DeliveryRepo) Create(_ context.Context, d *domain.Delivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *d
	r.s.deliveries[cp.ID] = &cp
	r.s.engagements[cp.ID] = &domain.Engagement{
		DeliveryID: cp.ID,
		LeadID:     cp.LeadID,
		CampaignID: cp.CampaignID,
		CreatedAt:  cp.SentAt,
		UpdatedAt:  cp.SentAt,
	}
	return nil
}

func (r *DeliveryRepo) Get(_ context.Context, id string) (*domain.Delivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deliveries[id]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *DeliveryRepo) LatestForLeadCampaign(_ context.Context, leadID, campaignID string) (*domain.Delivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *domain.Delivery
	for _, d := range r.s.deliveries {
		if d.LeadID != leadID || d.CampaignID != campaignID {
			continue
		}
		if latest == nil || d.SentAt.After(latest.SentAt) {
			latest = d
		}
	}
	if latest == nil {
		return nil, delivery.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *DeliveryRepo) UpdateStatus(_ context.Context, id string, status domain.DeliveryStatus, at time.Time, errMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deliveries[id]
	if !ok {
		return delivery.ErrNotFound
	}
	d.Status = status
	switch status {
	case domain.DeliveryDelivered:
		d.DeliveredAt = timePtr(at)
	case domain.DeliveryBounced:
		d.BouncedAt = timePtr(at)
		d.ErrorMessage = errMsg
	case domain.DeliveryFailed:
		d.ErrorMessage = errMsg
	}
	return nil
}

func (r *DeliveryRepo) ListOpens(_ context.Context, deliveryID string) ([]domain.OpenEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.OpenEvent(nil), r.s.opens[deliveryID]...), nil
}

func (r *DeliveryRepo) ListClicks(_ context.Context, deliveryID string) ([]domain.ClickEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.ClickEvent(nil), r.s.clicks[deliveryID]...), nil
}

// TrackingRepo implements tracking.Repository.
type TrackingRepo struct{ s *Store }

func (r *TrackingRepo) InsertOpen(_ context.Context, event *domain.OpenEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.opens[event.DeliveryID] = append(r.s.opens[event.DeliveryID], *event)
	return nil
}

func (r *TrackingRepo) InsertClick(_ context.Context, event *domain.ClickEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.clicks[event.DeliveryID] = append(r.s.clicks[event.DeliveryID], *event)
	return nil
}

// EngagementRepo implements engagement.Repository.
type EngagementRepo struct{ s *Store }

func (r *EngagementRepo) CreateFromDelivery(_ context.Context, deliveryID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.engagements[deliveryID]; ok {
		return nil
	}
	d, ok := r.s.deliveries[deliveryID]
	if !ok {
		return engagement.ErrNotFound
	}
	r.s.engagements[deliveryID] = &domain.Engagement{
		DeliveryID: d.ID,
		LeadID:     d.LeadID,
		CampaignID: d.CampaignID,
		CreatedAt:  d.SentAt,
		UpdatedAt:  d.SentAt,
	}
	return nil
}

func (r *EngagementRepo) RecordOpen(_ context.Context, deliveryID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.engagements[deliveryID]
	if !ok {
		return engagement.ErrNotFound
	}
	if !e.IsOpened {
		e.IsOpened = true
		e.FirstOpenedAt = timePtr(now)
		e.TimeToOpenSeconds = r.s.secondsSince(deliveryID, now)
	}
	e.OpenCount++
	e.LastOpenedAt = timePtr(now)
	e.UpdatedAt = now
	return nil
}

func (r *EngagementRepo) RecordClick(_ context.Context, deliveryID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.engagements[deliveryID]
	if !ok {
		return engagement.ErrNotFound
	}
	if !e.IsClicked {
		e.IsClicked = true
		e.FirstClickedAt = timePtr(now)
		e.TimeToClickSeconds = r.s.secondsSince(deliveryID, now)
	}
	e.ClickCount++
	e.LastClickedAt = timePtr(now)
	e.UpdatedAt = now
	return nil
}

func (r *EngagementRepo) RecordSecureAccess(_ context.Context, deliveryID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.engagements[deliveryID]
	if !ok {
		return engagement.ErrNotFound
	}
	if !e.IsSecureLinkAccessed {
		e.IsSecureLinkAccessed = true
		e.SecureLinkAccessedAt = timePtr(now)
		e.TimeToSecureSeconds = r.s.secondsSince(deliveryID, now)
	}
	e.UpdatedAt = now
	return nil
}

func (r *EngagementRepo) RecordOtpVerified(_ context.Context, deliveryID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.engagements[deliveryID]
	if !ok {
		return engagement.ErrNotFound
	}
	if !e.IsOtpVerified {
		e.IsOtpVerified = true
		e.OtpVerifiedAt = timePtr(now)
	}
	e.UpdatedAt = now
	return nil
}

func (r *EngagementRepo) MarkDelivered(_ context.Context, deliveryID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.engagements[deliveryID]
	if !ok {
		return engagement.ErrNotFound
	}
	e.IsDelivered = true
	e.UpdatedAt = now
	return nil
}

func (r *EngagementRepo) Get(_ context.Context, deliveryID string) (*domain.Engagement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.engagements[deliveryID]
	if !ok {
		return nil, engagement.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *EngagementRepo) LeadSummary(_ context.Context, leadID, campaignID string) (*engagement.Summary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := &engagement.Summary{}
	for _, e := range r.s.engagements {
		if e.LeadID != leadID {
			continue
		}
		if campaignID != "" && e.CampaignID != campaignID {
			continue
		}
		sum.TotalEmails++
		if e.IsDelivered {
			sum.Delivered++
		}
		if e.IsOpened {
			sum.Opened++
		}
		if e.IsClicked {
			sum.Clicked++
		}
		if e.IsSecureLinkAccessed {
			sum.SecureAccessed++
		}
		if e.IsOtpVerified {
			sum.OtpVerified++
		}
	}
	return sum, nil
}

func (r *EngagementRepo) GlobalStats(_ context.Context) (*engagement.Stats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := &engagement.Stats{}
	for _, e := range r.s.engagements {
		st.TotalDeliveries++
		if e.IsOpened {
			st.TotalOpens++
		}
		if e.IsClicked {
			st.TotalClicks++
		}
		if e.IsSecureLinkAccessed {
			st.TotalSecureAccess++
		}
		if e.IsOtpVerified {
			st.TotalOtpVerified++
		}
	}
	return st, nil
}

// SecureLinkRepo implements securelink.Repository.
type SecureLinkRepo struct{ s *Store }

func (r *SecureLinkRepo) Insert(_ context.Context, link *domain.SecureLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *link
	r.s.links[cp.ID] = &cp
	r.s.tokens[cp.Token] = cp.ID
	return nil
}

func (r *SecureLinkRepo) GetByToken(_ context.Context, token string) (*domain.SecureLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.tokens[token]
	if !ok {
		return nil, securelink.ErrNotFound
	}
	cp := *r.s.links[id]
	return &cp, nil
}

func (r *SecureLinkRepo) RecordVisit(_ context.Context, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if !ok {
		return securelink.ErrNotFound
	}
	l.AccessCount++
	l.LastAccessedAt = timePtr(now)
	return nil
}

func (r *SecureLinkRepo) Extend(_ context.Context, token string, newExpiry time.Time) (time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.tokens[token]
	if !ok {
		return time.Time{}, securelink.ErrNotFound
	}
	l := r.s.links[id]
	if !l.IsActive {
		return time.Time{}, securelink.ErrRevoked
	}
	l.ExpiresAt = newExpiry
	return newExpiry, nil
}

func (r *SecureLinkRepo) Revoke(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.tokens[token]
	if !ok {
		return securelink.ErrNotFound
	}
	r.s.links[id].IsActive = false
	return nil
}

func (r *SecureLinkRepo) SetOtpChallenge(_ context.Context, id, code string, issuedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if !ok {
		return securelink.ErrNotFound
	}
	l.OtpCode = code
	l.OtpIssuedAt = timePtr(issuedAt)
	l.OtpAttempts = 0
	l.OtpLockedUntil = nil
	return nil
}

func (r *SecureLinkRepo) RegisterFailedOtp(_ context.Context, id string, maxAttempts int, lockedUntil time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if !ok {
		return 0, securelink.ErrNotFound
	}
	l.OtpAttempts++
	if l.OtpAttempts >= maxAttempts {
		l.OtpLockedUntil = timePtr(lockedUntil)
	}
	return l.OtpAttempts, nil
}

func (r *SecureLinkRepo) MarkOtpVerified(_ context.Context, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if !ok {
		return securelink.ErrNotFound
	}
	l.OtpVerified = true
	l.OtpVerifiedAt = timePtr(now)
	return nil
}

func (r *SecureLinkRepo) InsertAccess(_ context.Context, access *domain.SecureLinkAccess) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accesses[access.SecureLinkID] = append(r.s.accesses[access.SecureLinkID], *access)
	return nil
}

func (r *SecureLinkRepo) ListAccesses(_ context.Context, linkID string) ([]domain.SecureLinkAccess, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := append([]domain.SecureLinkAccess(nil), r.s.accesses[linkID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func timePtr(t time.Time) *time.Time { return &t }

// secondsSince derives elapsed whole seconds from the delivery's sent_at.
// Caller must hold the lock. A missing delivery row leaves the metric
// unset.
func (s *Store) secondsSince(deliveryID string, now time.Time) *int64 {
	d, ok := s.deliveries[deliveryID]
	if !ok {
		return nil
	}
	secs := int64(now.Sub(d.SentAt).Seconds())
	return &secs
}
