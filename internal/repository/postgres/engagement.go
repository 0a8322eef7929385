package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/outreach-tracker/internal/domain"
	"github.com/ignite/outreach-tracker/internal/service/engagement"
)

// EngagementRepo implements engagement.Repository against PostgreSQL.
// Every Record* update is one conditional UPDATE statement: COALESCE keeps
// the first_* and time_to_* columns write-once under concurrency without
// an explicit row lock.
type EngagementRepo struct{ db *sql.DB }

// NewEngagementRepo creates a Postgres-backed engagement repository.
func NewEngagementRepo(db *sql.DB) *EngagementRepo { return &EngagementRepo{db: db} }

func (r *EngagementRepo) CreateFromDelivery(ctx context.Context, deliveryID string) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO engagements (delivery_id, lead_id, campaign_id, created_at, updated_at)
		SELECT id, lead_id, campaign_id, sent_at, sent_at
		FROM deliveries
		WHERE id = $1
		ON CONFLICT (delivery_id) DO NOTHING
	`, deliveryID)
	if err != nil {
		return fmt.Errorf("create engagement from delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create engagement from delivery: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Zero rows means either the aggregate already exists (fine) or the
	// delivery itself is unknown.
	var exists bool
	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM engagements WHERE delivery_id = $1)`, deliveryID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("create engagement from delivery: %w", err)
	}
	if !exists {
		return engagement.ErrNotFound
	}
	return nil
}

func (r *EngagementRepo) RecordOpen(ctx context.Context, deliveryID string, now time.Time) error {
	return r.exec(ctx, `
		UPDATE engagements e SET
			is_opened = TRUE,
			open_count = e.open_count + 1,
			first_opened_at = COALESCE(e.first_opened_at, $2),
			last_opened_at = $2,
			time_to_open_seconds = COALESCE(e.time_to_open_seconds,
				CAST(EXTRACT(EPOCH FROM ($2::timestamptz - d.sent_at)) AS BIGINT)),
			updated_at = $2
		FROM deliveries d
		WHERE e.delivery_id = $1 AND d.id = e.delivery_id
	`, "record open", deliveryID, now)
}

func (r *EngagementRepo) RecordClick(ctx context.Context, deliveryID string, now time.Time) error {
	return r.exec(ctx, `
		UPDATE engagements e SET
			is_clicked = TRUE,
			click_count = e.click_count + 1,
			first_clicked_at = COALESCE(e.first_clicked_at, $2),
			last_clicked_at = $2,
			time_to_click_seconds = COALESCE(e.time_to_click_seconds,
				CAST(EXTRACT(EPOCH FROM ($2::timestamptz - d.sent_at)) AS BIGINT)),
			updated_at = $2
		FROM deliveries d
		WHERE e.delivery_id = $1 AND d.id = e.delivery_id
	`, "record click", deliveryID, now)
}

func (r *EngagementRepo) RecordSecureAccess(ctx context.Context, deliveryID string, now time.Time) error {
	return r.exec(ctx, `
		UPDATE engagements e SET
			is_secure_link_accessed = TRUE,
			secure_link_accessed_at = COALESCE(e.secure_link_accessed_at, $2),
			time_to_secure_access_seconds = COALESCE(e.time_to_secure_access_seconds,
				CAST(EXTRACT(EPOCH FROM ($2::timestamptz - d.sent_at)) AS BIGINT)),
			updated_at = $2
		FROM deliveries d
		WHERE e.delivery_id = $1 AND d.id = e.delivery_id
	`, "record secure access", deliveryID, now)
}

func (r *EngagementRepo) RecordOtpVerified(ctx context.Context, deliveryID string, now time.Time) error {
	return r.exec(ctx, `
		UPDATE engagements SET
			is_otp_verified = TRUE,
			otp_verified_at = COALESCE(otp_verified_at, $2),
			updated_at = $2
		WHERE delivery_id = $1
	`, "record otp verified", deliveryID, now)
}

func (r *EngagementRepo) MarkDelivered(ctx context.Context, deliveryID string, now time.Time) error {
	return r.exec(ctx, `
		UPDATE engagements SET
			is_delivered = TRUE,
			updated_at = $2
		WHERE delivery_id = $1
	`, "mark delivered", deliveryID, now)
}

func (r *EngagementRepo) exec(ctx context.Context, q, op, deliveryID string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, q, deliveryID, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return engagement.ErrNotFound
	}
	return nil
}

func (r *EngagementRepo) Get(ctx context.Context, deliveryID string) (*domain.Engagement, error) {
	e := &domain.Engagement{}
	err := r.db.QueryRowContext(ctx, `
		SELECT delivery_id, lead_id, campaign_id, is_delivered, is_opened,
		       open_count, is_clicked, click_count, is_secure_link_accessed,
		       is_otp_verified, first_opened_at, last_opened_at,
		       first_clicked_at, last_clicked_at, secure_link_accessed_at,
		       otp_verified_at, time_to_open_seconds, time_to_click_seconds,
		       time_to_secure_access_seconds, created_at, updated_at
		FROM engagements
		WHERE delivery_id = $1
	`, deliveryID).Scan(
		&e.DeliveryID, &e.LeadID, &e.CampaignID, &e.IsDelivered, &e.IsOpened,
		&e.OpenCount, &e.IsClicked, &e.ClickCount, &e.IsSecureLinkAccessed,
		&e.IsOtpVerified, &e.FirstOpenedAt, &e.LastOpenedAt,
		&e.FirstClickedAt, &e.LastClickedAt, &e.SecureLinkAccessedAt,
		&e.OtpVerifiedAt, &e.TimeToOpenSeconds, &e.TimeToClickSeconds,
		&e.TimeToSecureSeconds, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, engagement.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get engagement: %w", err)
	}
	return e, nil
}

func (r *EngagementRepo) LeadSummary(ctx context.Context, leadID, campaignID string) (*engagement.Summary, error) {
	q := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_delivered),
		       COUNT(*) FILTER (WHERE is_opened),
		       COUNT(*) FILTER (WHERE is_clicked),
		       COUNT(*) FILTER (WHERE is_secure_link_accessed),
		       COUNT(*) FILTER (WHERE is_otp_verified)
		FROM engagements
		WHERE lead_id = $1`
	args := []interface{}{leadID}
	if campaignID != "" {
		q += ` AND campaign_id = $2`
		args = append(args, campaignID)
	}

	sum := &engagement.Summary{}
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&sum.TotalEmails, &sum.Delivered, &sum.Opened, &sum.Clicked,
		&sum.SecureAccessed, &sum.OtpVerified,
	)
	if err != nil {
		return nil, fmt.Errorf("lead summary: %w", err)
	}
	return sum, nil
}

func (r *EngagementRepo) GlobalStats(ctx context.Context) (*engagement.Stats, error) {
	st := &engagement.Stats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_opened),
		       COUNT(*) FILTER (WHERE is_clicked),
		       COUNT(*) FILTER (WHERE is_secure_link_accessed),
		       COUNT(*) FILTER (WHERE is_otp_verified)
		FROM engagements
	`).Scan(
		&st.TotalDeliveries, &st.TotalOpens, &st.TotalClicks,
		&st.TotalSecureAccess, &st.TotalOtpVerified,
	)
	if err != nil {
		return nil, fmt.Errorf("global stats: %w", err)
	}
	return st, nil
}
