package securelink_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/outreach-tracker/internal/domain"
	"github.com/ignite/outreach-tracker/internal/mailer"
	"github.com/ignite/outreach-tracker/internal/repository/memory"
	"github.com/ignite/outreach-tracker/internal/service/engagement"
	"github.com/ignite/outreach-tracker/internal/service/securelink"
)

var issuedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeSender captures challenge emails instead of sending them.
type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail bool
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) mailer.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return mailer.Result{Err: context.DeadlineExceeded}
	}
	f.sent = append(f.sent, msg)
	return mailer.Result{Success: true, MessageID: "fake", SentAt: time.Now()}
}

func (f *fakeSender) lastTo() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].To
}

type fixture struct {
	store  *memory.Store
	svc    *securelink.Service
	sender *fakeSender
	now    time.Time
}

func newFixture(t *testing.T, cfg securelink.Config) *fixture {
	t.Helper()
	store := memory.NewStore()
	err := store.Deliveries().Create(context.Background(), &domain.Delivery{
		ID:         "d-1",
		LeadID:     "lead-1",
		CampaignID: "camp-1",
		ToEmail:    "owner@business.test",
		Status:     domain.DeliverySent,
		SentAt:     issuedAt.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed delivery: %v", err)
	}

	f := &fixture{store: store, sender: &fakeSender{}, now: issuedAt}
	agg := engagement.NewService(store.Engagements(), engagement.WithNow(func() time.Time { return f.now }))
	f.svc = securelink.NewService(store.SecureLinks(), store.Deliveries(), agg, f.sender, cfg,
		securelink.WithNow(func() time.Time { return f.now }))
	return f
}

func (f *fixture) issue(t *testing.T) *domain.SecureLink {
	t.Helper()
	link, err := f.svc.Issue(context.Background(), securelink.IssueInput{
		LeadID:         "lead-1",
		CampaignID:     "camp-1",
		RecipientEmail: "owner@business.test",
		RecipientName:  "Acme Plumbing",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return link
}

func (f *fixture) visit(t *testing.T, token string) *securelink.VisitResult {
	t.Helper()
	res, err := f.svc.Visit(context.Background(), token, securelink.AccessMeta{SourceIP: "203.0.113.9"})
	if err != nil {
		t.Fatalf("visit: %v", err)
	}
	return res
}

func (f *fixture) currentCode(t *testing.T, token string) string {
	t.Helper()
	link, err := f.store.SecureLinks().GetByToken(context.Background(), token)
	if err != nil {
		t.Fatalf("get link: %v", err)
	}
	return link.OtpCode
}

func TestIssueProducesOpaqueToken(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)

	if len(link.Token) < 32 {
		t.Fatalf("token too short: %q", link.Token)
	}
	if strings.Contains(link.Token, "lead-1") || strings.Contains(link.Token, "camp-1") {
		t.Fatal("token leaks identifiers")
	}
	if !link.ExpiresAt.Equal(issuedAt.Add(7 * 24 * time.Hour)) {
		t.Fatalf("expires_at = %v, want 7 days out", link.ExpiresAt)
	}
}

func TestVisitUnknownToken(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	res := f.visit(t, "no-such-token")
	if res.State != securelink.StateNotFound {
		t.Fatalf("state = %s, want not_found", res.State)
	}
}

func TestVisitSendsChallengeOnce(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)

	res := f.visit(t, link.Token)
	if res.State != securelink.StateActive {
		t.Fatalf("state = %s, want active", res.State)
	}
	if !res.ChallengeSent {
		t.Fatal("expected challenge on first visit")
	}
	if to := f.sender.lastTo(); to != "owner@business.test" {
		t.Fatalf("challenge went to %q", to)
	}

	// A second visit reuses the pending challenge.
	res = f.visit(t, link.Token)
	if res.ChallengeSent {
		t.Fatal("second visit must not mint a new code")
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("sent %d challenges, want 1", len(f.sender.sent))
	}
}

func TestVisitReissuesLapsedChallenge(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)

	f.visit(t, link.Token)
	first := f.currentCode(t, link.Token)

	// Pending code lapses; the next visit mints a fresh one.
	f.now = f.now.Add(11 * time.Minute)
	res := f.visit(t, link.Token)
	if !res.ChallengeSent {
		t.Fatal("expected a fresh challenge after the code lapsed")
	}
	if second := f.currentCode(t, link.Token); second == first {
		t.Fatal("code was not rotated")
	}
}

func TestVerifiedLinkStopsChallenging(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)
	f.visit(t, link.Token)
	code := f.currentCode(t, link.Token)
	f.svc.Verify(context.Background(), link.Token, code, securelink.AccessMeta{})

	f.now = f.now.Add(24 * time.Hour)
	res := f.visit(t, link.Token)
	if res.ChallengeSent {
		t.Fatal("verified link must not re-challenge")
	}
}

func TestVisitCountsAndAuditRows(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)

	f.visit(t, link.Token)
	f.visit(t, link.Token)
	f.visit(t, link.Token)

	got, _ := f.store.SecureLinks().GetByToken(context.Background(), link.Token)
	if got.AccessCount != 3 {
		t.Fatalf("access_count = %d, want 3", got.AccessCount)
	}

	accesses, _ := f.store.SecureLinks().ListAccesses(context.Background(), link.ID)
	if len(accesses) != 3 {
		t.Fatalf("audit rows = %d, want 3", len(accesses))
	}
}

func TestVisitExpiredLink(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)

	f.now = issuedAt.Add(8 * 24 * time.Hour)
	res := f.visit(t, link.Token)
	if res.State != securelink.StateExpired {
		t.Fatalf("state = %s, want expired", res.State)
	}

	// The expired visit is audited but does not count as an access.
	got, _ := f.store.SecureLinks().GetByToken(context.Background(), link.Token)
	if got.AccessCount != 0 {
		t.Fatalf("access_count = %d, want 0", got.AccessCount)
	}
	accesses, _ := f.store.SecureLinks().ListAccesses(context.Background(), link.ID)
	if len(accesses) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(accesses))
	}
}

func TestVisitRevokedLinkLooksUnknown(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)

	if err := f.svc.Revoke(context.Background(), link.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	res := f.visit(t, link.Token)
	if res.State != securelink.StateNotFound {
		t.Fatalf("state = %s, want not_found", res.State)
	}
}

func TestExtendPushesExpiryFromNow(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)

	// Let the link lapse, then renew it.
	f.now = issuedAt.Add(8 * 24 * time.Hour)
	newExpiry, err := f.svc.Extend(context.Background(), link.Token)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !newExpiry.Equal(f.now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("new expiry = %v, want 7 days from now", newExpiry)
	}

	res := f.visit(t, link.Token)
	if res.State != securelink.StateActive {
		t.Fatalf("state after extend = %s, want active", res.State)
	}
}

func TestExtendRevokedLink(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)
	f.svc.Revoke(context.Background(), link.Token)

	if _, err := f.svc.Extend(context.Background(), link.Token); err != securelink.ErrRevoked {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
}

func TestVerifyCorrectCode(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)
	f.visit(t, link.Token)

	code := f.currentCode(t, link.Token)
	if len(code) != 6 {
		t.Fatalf("otp code %q is not six digits", code)
	}

	res, err := f.svc.Verify(context.Background(), link.Token, code, securelink.AccessMeta{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Outcome != securelink.OutcomeGranted {
		t.Fatalf("outcome = %s, want granted", res.Outcome)
	}

	// Re-submitting the same code inside the window stays granted.
	res, _ = f.svc.Verify(context.Background(), link.Token, code, securelink.AccessMeta{})
	if res.Outcome != securelink.OutcomeGranted {
		t.Fatalf("repeat outcome = %s, want granted", res.Outcome)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)
	f.visit(t, link.Token)

	res, err := f.svc.Verify(context.Background(), link.Token, "000000", securelink.AccessMeta{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Outcome != securelink.OutcomeInvalidCode {
		t.Fatalf("outcome = %s, want invalid_code", res.Outcome)
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)
	f.visit(t, link.Token)
	code := f.currentCode(t, link.Token)

	f.now = f.now.Add(11 * time.Minute)
	res, _ := f.svc.Verify(context.Background(), link.Token, code, securelink.AccessMeta{})
	if res.Outcome != securelink.OutcomeExpiredCode {
		t.Fatalf("outcome = %s, want expired_code", res.Outcome)
	}
}

func TestVerifyLockoutAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, securelink.Config{OtpMaxAttempts: 3})
	link := f.issue(t)
	f.visit(t, link.Token)
	code := f.currentCode(t, link.Token)

	for i := 0; i < 2; i++ {
		res, _ := f.svc.Verify(context.Background(), link.Token, "999999", securelink.AccessMeta{})
		if res.Outcome != securelink.OutcomeInvalidCode {
			t.Fatalf("attempt %d outcome = %s, want invalid_code", i+1, res.Outcome)
		}
	}

	res, _ := f.svc.Verify(context.Background(), link.Token, "999999", securelink.AccessMeta{})
	if res.Outcome != securelink.OutcomeLocked {
		t.Fatalf("outcome = %s, want locked", res.Outcome)
	}

	// Even the right code is refused while locked.
	res, _ = f.svc.Verify(context.Background(), link.Token, code, securelink.AccessMeta{})
	if res.Outcome != securelink.OutcomeLocked {
		t.Fatalf("locked outcome = %s, want locked", res.Outcome)
	}

	// Lockout lapses after the window.
	f.now = f.now.Add(16 * time.Minute)
	res, _ = f.svc.Verify(context.Background(), link.Token, code, securelink.AccessMeta{})
	if res.Outcome == securelink.OutcomeLocked {
		t.Fatal("lockout did not lapse")
	}
}

func TestVerifyUnknownToken(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	res, err := f.svc.Verify(context.Background(), "bogus", "123456", securelink.AccessMeta{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Outcome != securelink.OutcomeLinkInvalid {
		t.Fatalf("outcome = %s, want link_invalid", res.Outcome)
	}
}

func TestVerifyUpdatesEngagement(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)
	f.visit(t, link.Token)
	code := f.currentCode(t, link.Token)

	f.svc.Verify(context.Background(), link.Token, code, securelink.AccessMeta{})

	e, err := f.store.Engagements().Get(context.Background(), "d-1")
	if err != nil {
		t.Fatalf("get engagement: %v", err)
	}
	if !e.IsSecureLinkAccessed {
		t.Fatal("secure access milestone not set")
	}
	if !e.IsOtpVerified {
		t.Fatal("otp verified milestone not set")
	}
}

func TestChallengeOverrideAddress(t *testing.T) {
	f := newFixture(t, securelink.Config{OtpOverrideEmail: "qa@internal.test"})
	link := f.issue(t)
	f.visit(t, link.Token)

	if to := f.sender.lastTo(); to != "qa@internal.test" {
		t.Fatalf("challenge went to %q, want override", to)
	}
}

func TestChallengeFallbackToDeliveryRecipient(t *testing.T) {
	f := newFixture(t, securelink.Config{})

	link, err := f.svc.Issue(context.Background(), securelink.IssueInput{
		LeadID: "lead-1", CampaignID: "camp-1",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	f.visit(t, link.Token)

	if to := f.sender.lastTo(); to != "owner@business.test" {
		t.Fatalf("challenge went to %q, want delivery recipient", to)
	}
}

func TestChallengeDispatchFailureDoesNotFailVisit(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	f.sender.fail = true
	link := f.issue(t)

	res := f.visit(t, link.Token)
	if res.State != securelink.StateActive {
		t.Fatalf("state = %s, want active", res.State)
	}
	if res.ChallengeSent {
		t.Fatal("challenge reported as sent despite failure")
	}
	if res.ChallengeErr == nil {
		t.Fatal("expected challenge error to be surfaced")
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, securelink.Config{})
	link := f.issue(t)
	f.visit(t, link.Token)
	f.visit(t, link.Token)

	stats, err := f.svc.Stats(context.Background(), link.Token)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAccesses != 2 {
		t.Fatalf("total_accesses = %d, want 2", stats.TotalAccesses)
	}
	if stats.UniqueIPs != 1 {
		t.Fatalf("unique_ips = %d, want 1", stats.UniqueIPs)
	}
	if stats.IsExpired {
		t.Fatal("link reported expired")
	}
}
