package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/outreach-tracker/internal/pkg/httputil"
	"github.com/ignite/outreach-tracker/internal/pkg/logger"
	"github.com/ignite/outreach-tracker/internal/service/tracking"
)

// 1x1 transparent PNG
var pixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xdb, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func requestMeta(r *http.Request) tracking.RequestMeta {
	return tracking.RequestMeta{
		SourceIP:  httputil.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// handlePixel serves the open-tracking pixel. The pixel is returned with a
// 200 no matter what happens server-side; a broken image in a prospect's
// inbox is never acceptable.
func (s *Server) handlePixel(w http.ResponseWriter, r *http.Request) {
	deliveryID := chi.URLParam(r, "deliveryID")

	if err := s.tracking.RecordOpen(r.Context(), deliveryID, requestMeta(r)); err != nil {
		logger.Error("open tracking failed", "delivery_id", deliveryID, "err", err)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelPNG)
}

// handleClick records the click and redirects. The redirect always
// happens: an invalid target or a recording failure sends the visitor to
// the fallback URL instead of an error page.
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	deliveryID := chi.URLParam(r, "deliveryID")
	target := r.URL.Query().Get("url")
	label := r.URL.Query().Get("text")

	redirect, err := s.tracking.RecordClick(r.Context(), deliveryID, target, label, requestMeta(r))
	if err != nil {
		logger.Error("click tracking failed", "delivery_id", deliveryID, "err", err)
	}

	http.Redirect(w, r, redirect, http.StatusFound)
}
