package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/ignite/outreach-tracker/internal/config"
	"github.com/ignite/outreach-tracker/internal/pkg/logger"
)

// SESSender sends emails via AWS SES using the SDK v2.
type SESSender struct {
	client    *sesv2.Client
	fromName  string
	fromEmail string
	timeout   time.Duration
}

// NewSESSender creates an SES sender from the given config.
func NewSESSender(ctx context.Context, cfg appconfig.SESConfig) (*SESSender, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("ses credentials are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESSender{
		client:    sesv2.NewFromConfig(awsCfg),
		fromName:  cfg.FromName,
		fromEmail: cfg.FromEmail,
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, nil
}

// Send delivers a single email through AWS SES.
func (s *SESSender) Send(ctx context.Context, msg Message) Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		logger.Error("ses send failed", "to_email", msg.To, "err", err)
		return Result{Success: false, Err: err}
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	logger.Info("ses sent", "to_email", msg.To, "message_id", messageID)

	return Result{Success: true, MessageID: messageID, SentAt: time.Now()}
}
