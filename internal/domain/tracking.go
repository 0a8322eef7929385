package domain

import "time"

// DeliveryStatus enumerates the lifecycle states of a sent email.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryBounced   DeliveryStatus = "bounced"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Delivery represents one sent email. Created by the send pipeline before
// any tracking link for it is distributed; only status and the status
// timestamps mutate afterwards.
type Delivery struct {
	ID           string         `json:"id"`
	LeadID       string         `json:"lead_id"`
	CampaignID   string         `json:"campaign_id"`
	ToEmail      string         `json:"to_email"`
	Subject      string         `json:"subject"`
	MessageID    string         `json:"message_id"`
	Status       DeliveryStatus `json:"status"`
	SentAt       time.Time      `json:"sent_at"`
	DeliveredAt  *time.Time     `json:"delivered_at,omitempty"`
	BouncedAt    *time.Time     `json:"bounced_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// OpenEvent is one pixel fetch for a delivery. Mail clients prefetch and
// re-fetch, so multiple rows per delivery are normal.
type OpenEvent struct {
	ID         string    `json:"id"`
	DeliveryID string    `json:"delivery_id"`
	OccurredAt time.Time `json:"occurred_at"`
	SourceIP   string    `json:"source_ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Location   string    `json:"location,omitempty"`
}

// ClickEvent is one tracked link click for a delivery.
type ClickEvent struct {
	ID         string    `json:"id"`
	DeliveryID string    `json:"delivery_id"`
	OccurredAt time.Time `json:"occurred_at"`
	TargetURL  string    `json:"target_url"`
	LinkLabel  string    `json:"link_label,omitempty"`
	SourceIP   string    `json:"source_ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Location   string    `json:"location,omitempty"`
}

// Engagement is the aggregate row for one delivery. It is owned exclusively
// by the engagement service; first_* and time_to_* fields are written once
// at the first qualifying event and never overwritten.
type Engagement struct {
	DeliveryID           string     `json:"delivery_id"`
	LeadID               string     `json:"lead_id"`
	CampaignID           string     `json:"campaign_id"`
	IsDelivered          bool       `json:"is_delivered"`
	IsOpened             bool       `json:"is_opened"`
	OpenCount            int        `json:"open_count"`
	IsClicked            bool       `json:"is_clicked"`
	ClickCount           int        `json:"click_count"`
	IsSecureLinkAccessed bool       `json:"is_secure_link_accessed"`
	IsOtpVerified        bool       `json:"is_otp_verified"`
	FirstOpenedAt        *time.Time `json:"first_opened_at,omitempty"`
	LastOpenedAt         *time.Time `json:"last_opened_at,omitempty"`
	FirstClickedAt       *time.Time `json:"first_clicked_at,omitempty"`
	LastClickedAt        *time.Time `json:"last_clicked_at,omitempty"`
	SecureLinkAccessedAt *time.Time `json:"secure_link_accessed_at,omitempty"`
	OtpVerifiedAt        *time.Time `json:"otp_verified_at,omitempty"`
	TimeToOpenSeconds    *int64     `json:"time_to_open_seconds,omitempty"`
	TimeToClickSeconds   *int64     `json:"time_to_click_seconds,omitempty"`
	TimeToSecureSeconds  *int64     `json:"time_to_secure_access_seconds,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
