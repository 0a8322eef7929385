package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/outreach-tracker/internal/domain"
	"github.com/ignite/outreach-tracker/internal/service/securelink"
)

// SecureLinkRepo implements securelink.Repository against PostgreSQL.
// Counter and attempt updates are single UPDATE statements so concurrent
// visits and OTP submissions never lose increments.
type SecureLinkRepo struct{ db *sql.DB }

// NewSecureLinkRepo creates a Postgres-backed secure link repository.
func NewSecureLinkRepo(db *sql.DB) *SecureLinkRepo { return &SecureLinkRepo{db: db} }

const linkColumns = `
	id, token, lead_id, campaign_id, COALESCE(recipient_email,''),
	COALESCE(recipient_name,''), expires_at, is_active, created_at,
	last_accessed_at, access_count, COALESCE(otp_code,''), otp_issued_at,
	otp_attempts, otp_locked_until, otp_verified, otp_verified_at`

func scanLink(row *sql.Row) (*domain.SecureLink, error) {
	l := &domain.SecureLink{}
	err := row.Scan(
		&l.ID, &l.Token, &l.LeadID, &l.CampaignID, &l.RecipientEmail,
		&l.RecipientName, &l.ExpiresAt, &l.IsActive, &l.CreatedAt,
		&l.LastAccessedAt, &l.AccessCount, &l.OtpCode, &l.OtpIssuedAt,
		&l.OtpAttempts, &l.OtpLockedUntil, &l.OtpVerified, &l.OtpVerifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *SecureLinkRepo) Insert(ctx context.Context, l *domain.SecureLink) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO secure_links (id, token, lead_id, campaign_id,
		                          recipient_email, recipient_name,
		                          expires_at, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, l.ID, l.Token, l.LeadID, l.CampaignID, l.RecipientEmail, l.RecipientName,
		l.ExpiresAt, l.IsActive, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert secure link: %w", err)
	}
	return nil
}

func (r *SecureLinkRepo) GetByToken(ctx context.Context, token string) (*domain.SecureLink, error) {
	l, err := scanLink(r.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM secure_links WHERE token = $1`, token))
	if err == sql.ErrNoRows {
		return nil, securelink.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get secure link: %w", err)
	}
	return l, nil
}

func (r *SecureLinkRepo) RecordVisit(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE secure_links SET
			access_count = access_count + 1,
			last_accessed_at = $2
		WHERE id = $1
	`, id, now)
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return requireRow(res, "record visit")
}

func (r *SecureLinkRepo) Extend(ctx context.Context, token string, newExpiry time.Time) (time.Time, error) {
	var expiresAt time.Time
	err := r.db.QueryRowContext(ctx, `
		UPDATE secure_links SET expires_at = $2
		WHERE token = $1 AND is_active = TRUE
		RETURNING expires_at
	`, token, newExpiry).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		// Missing entirely, or present but revoked.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM secure_links WHERE token = $1)`, token,
		).Scan(&exists); err != nil {
			return time.Time{}, fmt.Errorf("extend secure link: %w", err)
		}
		if exists {
			return time.Time{}, securelink.ErrRevoked
		}
		return time.Time{}, securelink.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("extend secure link: %w", err)
	}
	return expiresAt, nil
}

func (r *SecureLinkRepo) Revoke(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE secure_links SET is_active = FALSE WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("revoke secure link: %w", err)
	}
	return requireRow(res, "revoke secure link")
}

func (r *SecureLinkRepo) SetOtpChallenge(ctx context.Context, id, code string, issuedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE secure_links SET
			otp_code = $2,
			otp_issued_at = $3,
			otp_attempts = 0,
			otp_locked_until = NULL
		WHERE id = $1
	`, id, code, issuedAt)
	if err != nil {
		return fmt.Errorf("set otp challenge: %w", err)
	}
	return requireRow(res, "set otp challenge")
}

func (r *SecureLinkRepo) RegisterFailedOtp(ctx context.Context, id string, maxAttempts int, lockedUntil time.Time) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE secure_links SET
			otp_attempts = otp_attempts + 1,
			otp_locked_until = CASE WHEN otp_attempts + 1 >= $2 THEN $3
			                        ELSE otp_locked_until END
		WHERE id = $1
		RETURNING otp_attempts
	`, id, maxAttempts, lockedUntil).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, securelink.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("register failed otp: %w", err)
	}
	return attempts, nil
}

func (r *SecureLinkRepo) MarkOtpVerified(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE secure_links SET
			otp_verified = TRUE,
			otp_verified_at = COALESCE(otp_verified_at, $2)
		WHERE id = $1
	`, id, now)
	if err != nil {
		return fmt.Errorf("mark otp verified: %w", err)
	}
	return requireRow(res, "mark otp verified")
}

func (r *SecureLinkRepo) InsertAccess(ctx context.Context, a *domain.SecureLinkAccess) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO secure_link_accesses (id, secure_link_id, occurred_at,
		                                  source_ip, user_agent, location, otp_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.SecureLinkID, a.OccurredAt, a.SourceIP, a.UserAgent, a.Location, a.OtpVerified)
	if err != nil {
		return fmt.Errorf("insert secure link access: %w", err)
	}
	return nil
}

func (r *SecureLinkRepo) ListAccesses(ctx context.Context, linkID string) ([]domain.SecureLinkAccess, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, secure_link_id, occurred_at, COALESCE(source_ip,''),
		       COALESCE(user_agent,''), COALESCE(location,''), otp_verified
		FROM secure_link_accesses
		WHERE secure_link_id = $1
		ORDER BY occurred_at ASC
	`, linkID)
	if err != nil {
		return nil, fmt.Errorf("list secure link accesses: %w", err)
	}
	defer rows.Close()

	var out []domain.SecureLinkAccess
	for rows.Next() {
		var a domain.SecureLinkAccess
		if err := rows.Scan(&a.ID, &a.SecureLinkID, &a.OccurredAt, &a.SourceIP, &a.UserAgent, &a.Location, &a.OtpVerified); err != nil {
			return nil, fmt.Errorf("scan secure link access: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return securelink.ErrNotFound
	}
	return nil
}
