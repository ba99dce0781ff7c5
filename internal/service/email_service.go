package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailService sends report copies via Amazon SES
type EmailService struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
	enabled   bool
	log       *slog.Logger
}

// NewEmailService creates a new email service. An empty fromEmail yields a disabled service.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName string, log *slog.Logger) (*EmailService, error) {
	log = log.With(slog.String("component", "email"))

	if fromEmail == "" {
		log.Info("email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, log: log}, nil
	}

	log.Debug("initializing email service", slog.String("region", awsRegion), slog.String("from", fromEmail))

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("email service enabled", slog.String("from", fromEmail), slog.String("region", awsRegion))

	return &EmailService{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
		log:       log,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s != nil && s.enabled
}

// SendParentReport emails a plain-text digest with a minimal HTML rendition
func (s *EmailService) SendParentReport(ctx context.Context, toEmail, toName, subject, text string) error {
	if !s.IsEnabled() {
		s.log.Debug("skipping email send (service disabled)", slog.String("to", toEmail))
		return nil
	}

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<p>Hi %s,</p>
	<pre style="font-family: inherit; white-space: pre-wrap;">%s</pre>
</body>
</html>`, html.EscapeString(toName), html.EscapeString(text))

	return s.sendEmail(ctx, toEmail, subject, htmlBody, text)
}

func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{strings.TrimSpace(toEmail)},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	attrs := []any{slog.String("to", toEmail), slog.String("subject", subject)}
	if result.MessageId != nil {
		attrs = append(attrs, slog.String("message_id", *result.MessageId))
	}
	s.log.Info("email sent", attrs...)
	return nil
}
