package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/outreach-tracker/internal/domain"
	"github.com/ignite/outreach-tracker/internal/service/delivery"
)

// DeliveryRepo implements delivery.Repository against PostgreSQL.
type DeliveryRepo struct{ db *sql.DB }

// NewDeliveryRepo creates a Postgres-backed delivery repository.
func NewDeliveryRepo(db *sql.DB) *DeliveryRepo { return &DeliveryRepo{db: db} }

// Create inserts the delivery and its zeroed engagement aggregate in one
// transaction, so a delivery is never visible without its aggregate row.
func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create delivery: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deliveries (id, lead_id, campaign_id, to_email, subject,
		                        message_id, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID, d.LeadID, d.CampaignID, d.ToEmail, d.Subject, d.MessageID, d.Status, d.SentAt)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO engagements (delivery_id, lead_id, campaign_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, d.ID, d.LeadID, d.CampaignID, d.SentAt)
	if err != nil {
		return fmt.Errorf("insert engagement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create delivery: %w", err)
	}
	return nil
}

func (r *DeliveryRepo) Get(ctx context.Context, id string) (*domain.Delivery, error) {
	d := &domain.Delivery{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, lead_id, campaign_id, to_email, subject, message_id,
		       status, sent_at, delivered_at, bounced_at, COALESCE(error_message,'')
		FROM deliveries
		WHERE id = $1
	`, id).Scan(
		&d.ID, &d.LeadID, &d.CampaignID, &d.ToEmail, &d.Subject, &d.MessageID,
		&d.Status, &d.SentAt, &d.DeliveredAt, &d.BouncedAt, &d.ErrorMessage,
	)
	if err == sql.ErrNoRows {
		return nil, delivery.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

func (r *DeliveryRepo) LatestForLeadCampaign(ctx context.Context, leadID, campaignID string) (*domain.Delivery, error) {
	d := &domain.Delivery{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, lead_id, campaign_id, to_email, subject, message_id,
		       status, sent_at, delivered_at, bounced_at, COALESCE(error_message,'')
		FROM deliveries
		WHERE lead_id = $1 AND campaign_id = $2
		ORDER BY sent_at DESC
		LIMIT 1
	`, leadID, campaignID).Scan(
		&d.ID, &d.LeadID, &d.CampaignID, &d.ToEmail, &d.Subject, &d.MessageID,
		&d.Status, &d.SentAt, &d.DeliveredAt, &d.BouncedAt, &d.ErrorMessage,
	)
	if err == sql.ErrNoRows {
		return nil, delivery.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest delivery for lead: %w", err)
	}
	return d, nil
}

func (r *DeliveryRepo) UpdateStatus(ctx context.Context, id string, status domain.DeliveryStatus, at time.Time, errMsg string) error {
	var q string
	args := []interface{}{status, id}
	switch status {
	case domain.DeliveryDelivered:
		q = `UPDATE deliveries SET status = $1, delivered_at = $3 WHERE id = $2`
		args = append(args, at)
	case domain.DeliveryBounced:
		q = `UPDATE deliveries SET status = $1, bounced_at = $3, error_message = $4 WHERE id = $2`
		args = append(args, at, errMsg)
	case domain.DeliveryFailed:
		q = `UPDATE deliveries SET status = $1, error_message = $3 WHERE id = $2`
		args = append(args, errMsg)
	default:
		q = `UPDATE deliveries SET status = $1 WHERE id = $2`
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	if n == 0 {
		return delivery.ErrNotFound
	}
	return nil
}

func (r *DeliveryRepo) ListOpens(ctx context.Context, deliveryID string) ([]domain.OpenEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, delivery_id, occurred_at, COALESCE(source_ip,''),
		       COALESCE(user_agent,''), COALESCE(location,'')
		FROM open_events
		WHERE delivery_id = $1
		ORDER BY occurred_at ASC
	`, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("list opens: %w", err)
	}
	defer rows.Close()

	var out []domain.OpenEvent
	for rows.Next() {
		var e domain.OpenEvent
		if err := rows.Scan(&e.ID, &e.DeliveryID, &e.OccurredAt, &e.SourceIP, &e.UserAgent, &e.Location); err != nil {
			return nil, fmt.Errorf("scan open event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *DeliveryRepo) ListClicks(ctx context.Context, deliveryID string) ([]domain.ClickEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, delivery_id, occurred_at, target_url, COALESCE(link_label,''),
		       COALESCE(source_ip,''), COALESCE(user_agent,''), COALESCE(location,'')
		FROM click_events
		WHERE delivery_id = $1
		ORDER BY occurred_at ASC
	`, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}
	defer rows.Close()

	var out []domain.ClickEvent
	for rows.Next() {
		var e domain.ClickEvent
		if err := rows.Scan(&e.ID, &e.DeliveryID, &e.OccurredAt, &e.TargetURL, &e.LinkLabel, &e.SourceIP, &e.UserAgent, &e.Location); err != nil {
			return nil, fmt.Errorf("scan click event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
