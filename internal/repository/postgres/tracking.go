package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/outreach-tracker/internal/domain"
)

// TrackingRepo implements tracking.Repository against PostgreSQL. Both
// tables are append-only.
type TrackingRepo struct{ db *sql.DB }

// NewTrackingRepo creates a Postgres-backed tracking event repository.
func NewTrackingRepo(db *sql.DB) *TrackingRepo { return &TrackingRepo{db: db} }

func (r *TrackingRepo) InsertOpen(ctx context.Context, e *domain.OpenEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO open_events (id, delivery_id, occurred_at, source_ip, user_agent, location)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.DeliveryID, e.OccurredAt, e.SourceIP, e.UserAgent, e.Location)
	if err != nil {
		return fmt.Errorf("insert open event: %w", err)
	}
	return nil
}

func (r *TrackingRepo) InsertClick(ctx context.Context, e *domain.ClickEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO click_events (id, delivery_id, occurred_at, target_url,
		                          link_label, source_ip, user_agent, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.DeliveryID, e.OccurredAt, e.TargetURL, e.LinkLabel, e.SourceIP, e.UserAgent, e.Location)
	if err != nil {
		return fmt.Errorf("insert click event: %w", err)
	}
	return nil
}
