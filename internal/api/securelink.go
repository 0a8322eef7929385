package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/outreach-tracker/internal/pkg/httputil"
	"github.com/ignite/outreach-tracker/internal/pkg/logger"
	"github.com/ignite/outreach-tracker/internal/service/securelink"
)

func (s *Server) accessMeta(r *http.Request) securelink.AccessMeta {
	meta := securelink.AccessMeta{
		SourceIP:  httputil.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if s.geo != nil && meta.SourceIP != "" {
		meta.Location = s.geo.Resolve(r.Context(), meta.SourceIP)
	}
	return meta
}

// handleSecureReport serves the recipient-facing report page. Unknown and
// revoked tokens get a 404, expired links a 410 with a renewal hint, and
// active links either the OTP challenge form or the report itself once the
// code has been verified.
func (s *Server) handleSecureReport(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	result, err := s.secureLink.Visit(r.Context(), token, s.accessMeta(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch result.State {
	case securelink.StateNotFound:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(pageNotFound))
	case securelink.StateExpired:
		w.WriteHeader(http.StatusGone)
		w.Write([]byte(pageExpired))
	case securelink.StateActive:
		w.WriteHeader(http.StatusOK)
		if result.Link.OtpVerified {
			fmt.Fprintf(w, pageReport, result.Link.LeadID, result.Link.CampaignID)
			return
		}
		if result.ChallengeErr != nil {
			logger.Error("otp challenge not delivered", "err", result.ChallengeErr)
		}
		fmt.Fprintf(w, pageChallenge, token)
	}
}

type verifyRequest struct {
	OtpCode string `json:"otp_code"`
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleVerifyOtp checks a submitted code. The response body never
// distinguishes a wrong code from an unknown token beyond what the status
// code already reveals.
func (s *Server) handleVerifyOtp(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req verifyRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	result, err := s.secureLink.Verify(r.Context(), token, req.OtpCode, s.accessMeta(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	switch result.Outcome {
	case securelink.OutcomeGranted:
		httputil.OK(w, verifyResponse{Success: true, Message: "verification successful"})
	case securelink.OutcomeExpiredCode:
		httputil.JSON(w, http.StatusUnauthorized, verifyResponse{Message: "verification code expired, revisit the link to request a new one"})
	case securelink.OutcomeLocked:
		httputil.JSON(w, http.StatusTooManyRequests, verifyResponse{Message: "too many failed attempts, try again later"})
	case securelink.OutcomeLinkInvalid:
		httputil.JSON(w, http.StatusNotFound, verifyResponse{Message: "link is no longer valid"})
	default:
		httputil.JSON(w, http.StatusUnauthorized, verifyResponse{Message: "invalid verification code"})
	}
}

type issueLinkRequest struct {
	LeadID         string `json:"lead_id"`
	CampaignID     string `json:"campaign_id"`
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name"`
}

func (s *Server) handleIssueLink(w http.ResponseWriter, r *http.Request) {
	var req issueLinkRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.LeadID == "" || req.CampaignID == "" {
		httputil.Error(w, http.StatusBadRequest, "lead_id and campaign_id are required")
		return
	}

	link, err := s.secureLink.Issue(r.Context(), securelink.IssueInput{
		LeadID:         req.LeadID,
		CampaignID:     req.CampaignID,
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{
		"id":         link.ID,
		"token":      link.Token,
		"expires_at": link.ExpiresAt,
	})
}

func (s *Server) handleExtendLink(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	expiresAt, err := s.secureLink.Extend(r.Context(), token)
	if errors.Is(err, securelink.ErrNotFound) || errors.Is(err, securelink.ErrRevoked) {
		httputil.NotFound(w, "link not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]any{"success": true, "expires_at": expiresAt})
}

func (s *Server) handleRevokeLink(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	err := s.secureLink.Revoke(r.Context(), token)
	if errors.Is(err, securelink.ErrNotFound) {
		httputil.NotFound(w, "link not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]any{"success": true})
}

func (s *Server) handleLinkStats(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	stats, err := s.secureLink.Stats(r.Context(), token)
	if errors.Is(err, securelink.ErrNotFound) {
		httputil.NotFound(w, "link not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, stats)
}

const pageNotFound = `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;text-align:center;padding:50px;">
<h1>Report Not Found</h1>
<p>This link is invalid or no longer available.</p>
</body></html>`

const pageExpired = `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;text-align:center;padding:50px;">
<h1>Link Expired</h1>
<p>This report link has expired. Contact your account manager to request a new one.</p>
</body></html>`

const pageChallenge = `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;text-align:center;padding:50px;">
<h1>Verification Required</h1>
<p>We sent a 6-digit code to the email address on file. Enter it below to view your report.</p>
<form onsubmit="verify(event)">
  <input id="otp" type="text" inputmode="numeric" maxlength="6" autocomplete="one-time-code" style="font-size:24px;letter-spacing:8px;text-align:center;width:200px;">
  <br><br>
  <button type="submit" style="font-size:16px;padding:10px 30px;">Verify</button>
</form>
<p id="msg"></p>
<script>
async function verify(e) {
  e.preventDefault();
  const resp = await fetch('/verify-otp/%s', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({otp_code: document.getElementById('otp').value})
  });
  const data = await resp.json();
  if (data.success) { location.reload(); } else { document.getElementById('msg').textContent = data.message; }
}
</script>
</body></html>`

const pageReport = `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;padding:50px;">
<h1>Engagement Report</h1>
<p>Lead %s &mdash; Campaign %s</p>
<p>Your detailed report is ready. This page is personalized for you and should not be shared.</p>
</body></html>`
