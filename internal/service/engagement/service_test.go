package engagement_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ignite/outreach-tracker/internal/domain"
	"github.com/ignite/outreach-tracker/internal/repository/memory"
	"github.com/ignite/outreach-tracker/internal/service/engagement"
)

var sentAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedDelivery(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	err := store.Deliveries().Create(context.Background(), &domain.Delivery{
		ID:         id,
		LeadID:     "lead-1",
		CampaignID: "camp-1",
		ToEmail:    "owner@business.test",
		Status:     domain.DeliverySent,
		SentAt:     sentAt,
	})
	if err != nil {
		t.Fatalf("seed delivery: %v", err)
	}
}

func TestRecordOpenFirstAndRepeat(t *testing.T) {
	store := memory.NewStore()
	seedDelivery(t, store, "d-1")

	now := sentAt.Add(5 * time.Second)
	svc := engagement.NewService(store.Engagements(), engagement.WithNow(func() time.Time { return now }))

	if err := svc.RecordOpen(context.Background(), "d-1"); err != nil {
		t.Fatalf("first open: %v", err)
	}

	e, err := svc.Get(context.Background(), "d-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !e.IsOpened || e.OpenCount != 1 {
		t.Fatalf("expected opened once, got opened=%v count=%d", e.IsOpened, e.OpenCount)
	}
	if e.FirstOpenedAt == nil || !e.FirstOpenedAt.Equal(now) {
		t.Fatalf("first_opened_at = %v, want %v", e.FirstOpenedAt, now)
	}
	if e.TimeToOpenSeconds == nil || *e.TimeToOpenSeconds != 5 {
		t.Fatalf("time_to_open = %v, want 5", e.TimeToOpenSeconds)
	}

	// Second open ten minutes later: count and last move, first does not.
	now = sentAt.Add(600 * time.Second)
	if err := svc.RecordOpen(context.Background(), "d-1"); err != nil {
		t.Fatalf("second open: %v", err)
	}

	e, _ = svc.Get(context.Background(), "d-1")
	if e.OpenCount != 2 {
		t.Fatalf("open_count = %d, want 2", e.OpenCount)
	}
	if !e.FirstOpenedAt.Equal(sentAt.Add(5 * time.Second)) {
		t.Fatalf("first_opened_at moved to %v", e.FirstOpenedAt)
	}
	if !e.LastOpenedAt.Equal(now) {
		t.Fatalf("last_opened_at = %v, want %v", e.LastOpenedAt, now)
	}
	if *e.TimeToOpenSeconds != 5 {
		t.Fatalf("time_to_open changed to %d", *e.TimeToOpenSeconds)
	}
}

func TestRecordClickMirrorsOpen(t *testing.T) {
	store := memory.NewStore()
	seedDelivery(t, store, "d-1")

	now := sentAt.Add(30 * time.Second)
	svc := engagement.NewService(store.Engagements(), engagement.WithNow(func() time.Time { return now }))

	if err := svc.RecordClick(context.Background(), "d-1"); err != nil {
		t.Fatalf("click: %v", err)
	}

	e, _ := svc.Get(context.Background(), "d-1")
	if !e.IsClicked || e.ClickCount != 1 {
		t.Fatalf("expected clicked once, got clicked=%v count=%d", e.IsClicked, e.ClickCount)
	}
	if e.TimeToClickSeconds == nil || *e.TimeToClickSeconds != 30 {
		t.Fatalf("time_to_click = %v, want 30", e.TimeToClickSeconds)
	}
	if e.IsOpened {
		t.Fatal("click must not set the open flag")
	}
}

func TestConcurrentOpens(t *testing.T) {
	store := memory.NewStore()
	seedDelivery(t, store, "d-1")

	svc := engagement.NewService(store.Engagements())

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if err := svc.RecordOpen(context.Background(), "d-1"); err != nil {
				t.Errorf("record open: %v", err)
			}
		}()
	}
	wg.Wait()

	e, _ := svc.Get(context.Background(), "d-1")
	if e.OpenCount != workers {
		t.Fatalf("open_count = %d, want %d", e.OpenCount, workers)
	}
	if e.FirstOpenedAt == nil {
		t.Fatal("first_opened_at not set")
	}
}

func TestSecureAccessMilestoneIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	seedDelivery(t, store, "d-1")

	now := sentAt.Add(time.Minute)
	svc := engagement.NewService(store.Engagements(), engagement.WithNow(func() time.Time { return now }))

	svc.RecordSecureAccess(context.Background(), "d-1")
	first, _ := svc.Get(context.Background(), "d-1")

	now = now.Add(time.Hour)
	svc.RecordSecureAccess(context.Background(), "d-1")
	second, _ := svc.Get(context.Background(), "d-1")

	if !second.SecureLinkAccessedAt.Equal(*first.SecureLinkAccessedAt) {
		t.Fatalf("milestone timestamp moved from %v to %v", first.SecureLinkAccessedAt, second.SecureLinkAccessedAt)
	}
}

func TestRecordUnknownDelivery(t *testing.T) {
	store := memory.NewStore()
	svc := engagement.NewService(store.Engagements())

	if err := svc.RecordOpen(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown delivery")
	}
}

func TestLeadSummaryRates(t *testing.T) {
	store := memory.NewStore()
	deliveries := store.Deliveries()
	ctx := context.Background()

	for _, id := range []string{"d-1", "d-2", "d-3", "d-4"} {
		deliveries.Create(ctx, &domain.Delivery{
			ID: id, LeadID: "lead-1", CampaignID: "camp-1",
			ToEmail: "owner@business.test", Status: domain.DeliverySent, SentAt: sentAt,
		})
	}

	svc := engagement.NewService(store.Engagements())
	svc.RecordOpen(ctx, "d-1")
	svc.RecordOpen(ctx, "d-2")
	svc.RecordClick(ctx, "d-1")
	svc.RecordOtpVerified(ctx, "d-1")

	sum, err := svc.LeadSummary(ctx, "lead-1", "")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalEmails != 4 || sum.Opened != 2 || sum.Clicked != 1 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if sum.EngagementRate != 50 {
		t.Fatalf("engagement_rate = %v, want 50", sum.EngagementRate)
	}
	if sum.ClickRate != 25 {
		t.Fatalf("click_rate = %v, want 25", sum.ClickRate)
	}
	if sum.ConversionRate != 25 {
		t.Fatalf("conversion_rate = %v, want 25", sum.ConversionRate)
	}
}

func TestGlobalStats(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	store.Deliveries().Create(ctx, &domain.Delivery{
		ID: "d-1", LeadID: "lead-1", CampaignID: "camp-1",
		ToEmail: "a@b.test", Status: domain.DeliverySent, SentAt: sentAt,
	})
	store.Deliveries().Create(ctx, &domain.Delivery{
		ID: "d-2", LeadID: "lead-2", CampaignID: "camp-1",
		ToEmail: "c@d.test", Status: domain.DeliverySent, SentAt: sentAt,
	})

	svc := engagement.NewService(store.Engagements())
	svc.RecordOpen(ctx, "d-1")

	st, err := svc.GlobalStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalDeliveries != 2 || st.TotalOpens != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.OpenRate != 50 {
		t.Fatalf("open_rate = %v, want 50", st.OpenRate)
	}
}
