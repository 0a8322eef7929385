package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/outreach-tracker/internal/domain"
	"github.com/ignite/outreach-tracker/internal/pkg/httputil"
	"github.com/ignite/outreach-tracker/internal/service/delivery"
	"github.com/ignite/outreach-tracker/internal/service/engagement"
)

type createDeliveryRequest struct {
	LeadID     string `json:"lead_id"`
	CampaignID string `json:"campaign_id"`
	ToEmail    string `json:"to_email"`
	Subject    string `json:"subject"`
	MessageID  string `json:"message_id"`
}

func (s *Server) handleCreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.LeadID == "" || req.CampaignID == "" || req.ToEmail == "" {
		httputil.Error(w, http.StatusBadRequest, "lead_id, campaign_id and to_email are required")
		return
	}

	d, err := s.delivery.Create(r.Context(), delivery.CreateInput{
		LeadID:     req.LeadID,
		CampaignID: req.CampaignID,
		ToEmail:    req.ToEmail,
		Subject:    req.Subject,
		MessageID:  req.MessageID,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{
		"id":        d.ID,
		"status":    d.Status,
		"sent_at":   d.SentAt,
		"pixel_url": s.tracking.PixelURL(d.ID),
	})
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// handleDeliveryStatus applies a transport status report: delivered,
// bounced or failed.
func (s *Server) handleDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	deliveryID := chi.URLParam(r, "deliveryID")

	var req statusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	var err error
	switch domain.DeliveryStatus(req.Status) {
	case domain.DeliveryDelivered:
		err = s.delivery.MarkDelivered(r.Context(), deliveryID)
	case domain.DeliveryBounced:
		err = s.delivery.MarkBounced(r.Context(), deliveryID, req.Reason)
	case domain.DeliveryFailed:
		err = s.delivery.MarkFailed(r.Context(), deliveryID, req.Reason)
	default:
		httputil.Error(w, http.StatusBadRequest, "status must be delivered, bounced or failed")
		return
	}
	if errors.Is(err, delivery.ErrNotFound) {
		httputil.NotFound(w, "delivery not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]any{"success": true})
}

// handleEmailAnalytics returns the delivery with its aggregate and raw
// event streams.
func (s *Server) handleEmailAnalytics(w http.ResponseWriter, r *http.Request) {
	deliveryID := chi.URLParam(r, "deliveryID")

	detail, err := s.delivery.Detail(r.Context(), deliveryID)
	if errors.Is(err, delivery.ErrNotFound) {
		httputil.NotFound(w, "delivery not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, detail)
}

// handleLeadEngagement returns the per-lead rollup, optionally scoped to
// one campaign via ?campaign_id=.
func (s *Server) handleLeadEngagement(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	campaignID := r.URL.Query().Get("campaign_id")

	sum, err := s.engagement.LeadSummary(r.Context(), leadID, campaignID)
	if errors.Is(err, engagement.ErrNotFound) {
		httputil.NotFound(w, "lead not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, sum)
}

func (s *Server) handleEmailStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engagement.GlobalStats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}
