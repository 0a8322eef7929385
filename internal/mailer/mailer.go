// Package mailer delivers transactional mail for the tracking service.
// The only message this core sends itself is the OTP challenge email; the
// campaign send pipeline owns its own transport.
package mailer

import (
	"context"
	"fmt"
	"time"
)

// Message is a single outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Result reports the outcome of a send. Err is carried in the result
// rather than returned so callers can treat dispatch as a side effect
// while still surfacing the failure to staff-facing paths.
type Result struct {
	Success   bool
	MessageID string
	SentAt    time.Time
	Err       error
}

// Sender dispatches a single email. Implementations must honor the
// context deadline and never block past it.
type Sender interface {
	Send(ctx context.Context, msg Message) Result
}

// ChallengeEmail renders the OTP challenge message for a recipient.
// displayName is the lead's business name, used in the subject and greeting.
func ChallengeEmail(displayName, code string, validFor time.Duration) Message {
	subject := fmt.Sprintf("Your access code for the %s report", displayName)
	body := fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="padding: 30px;">
    <p>Dear %s team,</p>
    <p>You requested access to your detailed report. Use the code below to unlock it:</p>
    <div style="background: #f8f9fa; padding: 20px; text-align: center; margin: 20px 0; border-radius: 8px;">
      <h1 style="font-size: 36px; margin: 0; letter-spacing: 5px;">%s</h1>
      <p style="margin: 10px 0 0 0; color: #666;">Enter this code to access your report</p>
    </div>
    <p><strong>This code expires in %d minutes.</strong></p>
    <p style="font-size: 12px; color: #666;">This is a secure access code. Do not share it with others.</p>
  </div>
</body>
</html>`, displayName, code, int(validFor.Minutes()))

	return Message{Subject: subject, HTMLBody: body}
}
