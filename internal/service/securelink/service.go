package securelink

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-tracker/internal/domain"
	"github.com/ignite/outreach-tracker/internal/mailer"
	"github.com/ignite/outreach-tracker/internal/pkg/logger"
)

// VisitState classifies the outcome of visiting a secure link.
type VisitState string

const (
	StateNotFound VisitState = "not_found"
	StateExpired  VisitState = "expired"
	StateActive   VisitState = "active"
)

// VerifyOutcome classifies an OTP verification attempt.
type VerifyOutcome string

const (
	OutcomeGranted     VerifyOutcome = "granted"
	OutcomeInvalidCode VerifyOutcome = "invalid_code"
	OutcomeExpiredCode VerifyOutcome = "expired_code"
	OutcomeLinkInvalid VerifyOutcome = "link_invalid"
	OutcomeLocked      VerifyOutcome = "locked"
)

// Aggregator is the slice of the engagement service this package needs.
type Aggregator interface {
	RecordSecureAccess(ctx context.Context, deliveryID string) error
	RecordOtpVerified(ctx context.Context, deliveryID string) error
}

// AccessMeta carries per-visit request metadata into the audit log.
type AccessMeta struct {
	SourceIP  string
	UserAgent string
	Location  string
}

// IssueInput describes a new report-access grant. RecipientEmail is the
// lead's on-file address captured at send time; when empty, OTP challenges
// go to the configured fallback address.
type IssueInput struct {
	LeadID         string
	CampaignID     string
	RecipientEmail string
	RecipientName  string
	TTL            time.Duration
}

// VisitResult is the outcome of one secure-link visit.
type VisitResult struct {
	State         VisitState
	Link          *domain.SecureLink
	ChallengeSent bool
	// ChallengeErr carries an OTP dispatch failure. It never fails the
	// visit itself but is surfaced because an unsent code silently blocks
	// the recipient.
	ChallengeErr error
}

// VerifyResult is the outcome of one OTP verification attempt.
type VerifyResult struct {
	Outcome VerifyOutcome
	Link    *domain.SecureLink
}

// Stats summarizes the access log for one link.
type Stats struct {
	TotalAccesses int                       `json:"total_accesses"`
	UniqueIPs     int                       `json:"unique_ips"`
	CreatedAt     time.Time                 `json:"created_at"`
	ExpiresAt     time.Time                 `json:"expires_at"`
	IsExpired     bool                      `json:"is_expired"`
	OtpVerified   bool                      `json:"otp_verified"`
	Accesses      []domain.SecureLinkAccess `json:"accesses"`
}

// Config holds the tunables for the link lifecycle and OTP gate.
type Config struct {
	LinkTTL          time.Duration
	OtpTTL           time.Duration
	OtpMaxAttempts   int
	OtpLockout       time.Duration
	OtpFallbackEmail string
	// OtpOverrideEmail redirects every challenge to one address; only
	// honored outside production (enforced by config validation).
	OtpOverrideEmail string
}

// Service implements the secure-link lifecycle and OTP gate.
type Service struct {
	repo       Repository
	deliveries DeliveryLookup
	agg        Aggregator
	sender     mailer.Sender
	cfg        Config
	now        func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a secure-link service.
func NewService(repo Repository, deliveries DeliveryLookup, agg Aggregator, sender mailer.Sender, cfg Config, opts ...Option) *Service {
	if cfg.LinkTTL == 0 {
		cfg.LinkTTL = 7 * 24 * time.Hour
	}
	if cfg.OtpTTL == 0 {
		cfg.OtpTTL = 10 * time.Minute
	}
	if cfg.OtpMaxAttempts == 0 {
		cfg.OtpMaxAttempts = 5
	}
	if cfg.OtpLockout == 0 {
		cfg.OtpLockout = 15 * time.Minute
	}
	s := &Service{
		repo:       repo,
		deliveries: deliveries,
		agg:        agg,
		sender:     sender,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Issue creates a report-access grant and returns the persisted link. The
// token is opaque and unguessable; nothing about the lead or campaign can
// be decoded from it.
func (s *Service) Issue(ctx context.Context, input IssueInput) (*domain.SecureLink, error) {
	if input.LeadID == "" || input.CampaignID == "" {
		return nil, fmt.Errorf("lead and campaign IDs are required")
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	ttl := input.TTL
	if ttl == 0 {
		ttl = s.cfg.LinkTTL
	}

	now := s.now()
	link := &domain.SecureLink{
		ID:             uuid.New().String(),
		Token:          token,
		LeadID:         input.LeadID,
		CampaignID:     input.CampaignID,
		RecipientEmail: input.RecipientEmail,
		RecipientName:  input.RecipientName,
		ExpiresAt:      now.Add(ttl),
		IsActive:       true,
		CreatedAt:      now,
	}
	if err := s.repo.Insert(ctx, link); err != nil {
		return nil, fmt.Errorf("insert secure link: %w", err)
	}
	return link, nil
}

// Visit resolves a token and records the visit. One audit row is written
// for every visit where the token resolves to a link, regardless of the
// link's state. On the first active visit an OTP challenge is minted and
// emailed as a side effect.
func (s *Service) Visit(ctx context.Context, token string, meta AccessMeta) (*VisitResult, error) {
	link, err := s.repo.GetByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return &VisitResult{State: StateNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	s.logAccess(ctx, link, meta, now)

	if !link.IsActive {
		// Revoked links are indistinguishable from unknown tokens to the
		// visitor; the audit row above still records the attempt.
		return &VisitResult{State: StateNotFound}, nil
	}
	if link.IsExpired(now) {
		return &VisitResult{State: StateExpired, Link: link}, nil
	}

	if err := s.repo.RecordVisit(ctx, link.ID, now); err != nil {
		return nil, fmt.Errorf("record visit: %w", err)
	}
	link.AccessCount++
	link.LastAccessedAt = &now

	s.recordEngagement(ctx, link, s.agg.RecordSecureAccess)

	result := &VisitResult{State: StateActive, Link: link}
	if s.needsChallenge(link, now) {
		result.ChallengeSent, result.ChallengeErr = s.issueChallenge(ctx, link, now)
	}
	return result, nil
}

// needsChallenge reports whether a visit should mint a code: none was ever
// issued, or the pending one lapsed without being verified. A verified
// link never re-challenges.
func (s *Service) needsChallenge(link *domain.SecureLink, now time.Time) bool {
	if link.OtpVerified {
		return false
	}
	if link.OtpIssuedAt == nil {
		return true
	}
	return now.Sub(*link.OtpIssuedAt) > s.cfg.OtpTTL
}

// issueChallenge mints a code, stores it, and dispatches the challenge
// email. Dispatch failure is returned but never aborts the visit.
func (s *Service) issueChallenge(ctx context.Context, link *domain.SecureLink, now time.Time) (bool, error) {
	code, err := generateOtpCode()
	if err != nil {
		return false, err
	}
	if err := s.repo.SetOtpChallenge(ctx, link.ID, code, now); err != nil {
		return false, fmt.Errorf("store otp challenge: %w", err)
	}
	link.OtpCode = code
	link.OtpIssuedAt = &now

	to := s.challengeRecipient(ctx, link)
	if to == "" {
		return false, fmt.Errorf("no recipient address for secure link %s", link.ID)
	}

	name := link.RecipientName
	if name == "" {
		name = "your business"
	}
	msg := mailer.ChallengeEmail(name, code, s.cfg.OtpTTL)
	msg.To = to

	res := s.sender.Send(ctx, msg)
	if !res.Success {
		logger.Error("otp challenge dispatch failed", "link_id", link.ID, "to_email", to, "err", res.Err)
		return false, res.Err
	}
	logger.Info("otp challenge sent", "link_id", link.ID, "to_email", to)
	return true, nil
}

// challengeRecipient picks the address the code goes to: the non-production
// override when set, otherwise the address on file, otherwise the delivery
// recipient, otherwise the configured fallback.
func (s *Service) challengeRecipient(ctx context.Context, link *domain.SecureLink) string {
	if s.cfg.OtpOverrideEmail != "" {
		return s.cfg.OtpOverrideEmail
	}
	if link.RecipientEmail != "" {
		return link.RecipientEmail
	}
	if d, err := s.deliveries.LatestForLeadCampaign(ctx, link.LeadID, link.CampaignID); err == nil && d.ToEmail != "" {
		return d.ToEmail
	}
	return s.cfg.OtpFallbackEmail
}

// Verify checks a submitted code against the stored challenge. Repeated
// correct submissions keep returning granted until the code window closes;
// the code is not consumed.
func (s *Service) Verify(ctx context.Context, token, submitted string, meta AccessMeta) (*VerifyResult, error) {
	link, err := s.repo.GetByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return &VerifyResult{Outcome: OutcomeLinkInvalid}, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	s.logAccess(ctx, link, meta, now)

	if !link.IsActive || link.IsExpired(now) {
		return &VerifyResult{Outcome: OutcomeLinkInvalid, Link: link}, nil
	}
	if link.OtpLockedUntil != nil && now.Before(*link.OtpLockedUntil) {
		return &VerifyResult{Outcome: OutcomeLocked, Link: link}, nil
	}
	if link.OtpIssuedAt == nil {
		return &VerifyResult{Outcome: OutcomeInvalidCode, Link: link}, nil
	}
	if now.Sub(*link.OtpIssuedAt) > s.cfg.OtpTTL {
		return &VerifyResult{Outcome: OutcomeExpiredCode, Link: link}, nil
	}

	if subtle.ConstantTimeCompare([]byte(submitted), []byte(link.OtpCode)) != 1 {
		attempts, err := s.repo.RegisterFailedOtp(ctx, link.ID, s.cfg.OtpMaxAttempts, now.Add(s.cfg.OtpLockout))
		if err != nil {
			return nil, fmt.Errorf("register failed otp: %w", err)
		}
		logger.Warn("otp verification failed", "link_id", link.ID, "attempts", attempts)
		if attempts >= s.cfg.OtpMaxAttempts {
			return &VerifyResult{Outcome: OutcomeLocked, Link: link}, nil
		}
		return &VerifyResult{Outcome: OutcomeInvalidCode, Link: link}, nil
	}

	if !link.OtpVerified {
		if err := s.repo.MarkOtpVerified(ctx, link.ID, now); err != nil {
			return nil, fmt.Errorf("mark otp verified: %w", err)
		}
		link.OtpVerified = true
		link.OtpVerifiedAt = &now
		s.recordEngagement(ctx, link, s.agg.RecordOtpVerified)
	}

	return &VerifyResult{Outcome: OutcomeGranted, Link: link}, nil
}

// Extend pushes the expiry forward by one full TTL from now. Works on
// expired links; refuses revoked ones. Prior OTP verification is kept.
func (s *Service) Extend(ctx context.Context, token string) (time.Time, error) {
	return s.repo.Extend(ctx, token, s.now().Add(s.cfg.LinkTTL))
}

// Revoke deactivates a link permanently.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.repo.Revoke(ctx, token)
}

// Stats returns the access-log summary for a link.
func (s *Service) Stats(ctx context.Context, token string) (*Stats, error) {
	link, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	accesses, err := s.repo.ListAccesses(ctx, link.ID)
	if err != nil {
		return nil, err
	}

	ips := make(map[string]struct{})
	for _, a := range accesses {
		if a.SourceIP != "" {
			ips[a.SourceIP] = struct{}{}
		}
	}

	return &Stats{
		TotalAccesses: len(accesses),
		UniqueIPs:     len(ips),
		CreatedAt:     link.CreatedAt,
		ExpiresAt:     link.ExpiresAt,
		IsExpired:     link.IsExpired(s.now()),
		OtpVerified:   link.OtpVerified,
		Accesses:      accesses,
	}, nil
}

// logAccess appends the audit row for a visit. Audit failures are logged
// and swallowed; they must not break the recipient-facing flow.
func (s *Service) logAccess(ctx context.Context, link *domain.SecureLink, meta AccessMeta, now time.Time) {
	access := &domain.SecureLinkAccess{
		ID:           uuid.New().String(),
		SecureLinkID: link.ID,
		OccurredAt:   now,
		SourceIP:     meta.SourceIP,
		UserAgent:    meta.UserAgent,
		Location:     meta.Location,
		OtpVerified:  link.OtpVerified,
	}
	if err := s.repo.InsertAccess(ctx, access); err != nil {
		logger.Error("secure link access log failed", "link_id", link.ID, "err", err)
	}
}

// recordEngagement resolves the delivery behind a link and applies an
// aggregate update. Best-effort: a lead with no delivery on record (or an
// aggregator failure) is logged, never surfaced to the visitor.
func (s *Service) recordEngagement(ctx context.Context, link *domain.SecureLink, record func(context.Context, string) error) {
	d, err := s.deliveries.LatestForLeadCampaign(ctx, link.LeadID, link.CampaignID)
	if err != nil {
		logger.Warn("no delivery for secure link engagement", "link_id", link.ID, "err", err)
		return
	}
	if err := record(ctx, d.ID); err != nil {
		logger.Error("engagement update failed", "delivery_id", d.ID, "err", err)
	}
}
