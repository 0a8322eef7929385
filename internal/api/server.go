// Package api exposes the HTTP surface: recipient-facing tracking and
// secure-report endpoints, plus the staff endpoints for deliveries and
// engagement analytics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ignite/outreach-tracker/internal/service/delivery"
	"github.com/ignite/outreach-tracker/internal/service/engagement"
	"github.com/ignite/outreach-tracker/internal/service/securelink"
	"github.com/ignite/outreach-tracker/internal/service/tracking"
)

// Server bundles the HTTP handlers and their dependencies.
type Server struct {
	tracking   *tracking.Service
	secureLink *securelink.Service
	delivery   *delivery.Service
	engagement *engagement.Service
	geo        tracking.GeoResolver
}

// NewServer creates the HTTP server facade. geo may be nil to disable
// location enrichment of the secure-link audit log.
func NewServer(t *tracking.Service, sl *securelink.Service, d *delivery.Service, e *engagement.Service, geo tracking.GeoResolver) *Server {
	return &Server{tracking: t, secureLink: sl, delivery: d, engagement: e, geo: geo}
}

// Routes builds the router. Recipient-facing endpoints sit at the root;
// staff endpoints live under /api.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Get("/track/email-open/{deliveryID}", s.handlePixel)
	r.Get("/track/email-click/{deliveryID}", s.handleClick)

	r.Get("/secure-report/{token}", s.handleSecureReport)
	r.Post("/verify-otp/{token}", s.handleVerifyOtp)
	r.Post("/secure-link/{token}/extend", s.handleExtendLink)
	r.Post("/secure-link/{token}/revoke", s.handleRevokeLink)
	r.Get("/secure-link/{token}/stats", s.handleLinkStats)

	r.Route("/api", func(r chi.Router) {
		r.Post("/deliveries", s.handleCreateDelivery)
		r.Post("/deliveries/{deliveryID}/status", s.handleDeliveryStatus)
		r.Get("/email-analytics/{deliveryID}", s.handleEmailAnalytics)
		r.Get("/lead-engagement/{leadID}", s.handleLeadEngagement)
		r.Get("/email-stats", s.handleEmailStats)
		r.Post("/secure-links", s.handleIssueLink)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
