package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sirupsen/logrus"

	"familybudget/internal/metrics"
)

// sesSender is the subset of the SES client used for delivery
type sesSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     sesSender
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	debug      bool
	logger     *logrus.Logger
	metrics    *metrics.Metrics
}

// EmailConfig carries the settings NewEmailService needs
type EmailConfig struct {
	AWSRegion  string
	FromEmail  string
	FromName   string
	AppBaseURL string
	Debug      bool
}

// NewEmailService creates a new email service. Without a sender address the
// service is created disabled and every send is skipped.
func NewEmailService(ctx context.Context, cfg EmailConfig, logger *logrus.Logger, m *metrics.Metrics) (*EmailService, error) {
	if cfg.FromEmail == "" {
		logger.Info("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, debug: cfg.Debug, logger: logger, metrics: m}, nil
	}

	if cfg.Debug {
		logger.WithFields(logrus.Fields{
			"region":       cfg.AWSRegion,
			"from_email":   cfg.FromEmail,
			"from_name":    cfg.FromName,
			"app_base_url": cfg.AppBaseURL,
		}).Debug("initializing email service with AWS SES")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"from":   cfg.FromEmail,
		"region": cfg.AWSRegion,
	}).Info("Email service enabled")

	return newEmailServiceWithClient(sesv2.NewFromConfig(awsCfg), cfg, logger, m), nil
}

func newEmailServiceWithClient(client sesSender, cfg EmailConfig, logger *logrus.Logger, m *metrics.Metrics) *EmailService {
	return &EmailService{
		client:     client,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		appBaseURL: strings.TrimRight(cfg.AppBaseURL, "/"),
		enabled:    true,
		debug:      cfg.Debug,
		logger:     logger,
		metrics:    m,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s != nil && s.enabled
}

// SendInviteEmail sends an invite code for a family to a prospective member
func (s *EmailService) SendInviteEmail(ctx context.Context, toEmail, familyName, inviterName, code string) error {
	if !s.IsEnabled() {
		s.logger.WithField("to", toEmail).Info("Skipping email send (service disabled): family invite")
		return nil
	}

	joinLink := fmt.Sprintf("%s/join?code=%s", s.appBaseURL, code)
	subject := fmt.Sprintf("%s invited you to the %s family budget", inviterName, familyName)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #2e7d5b; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.code { font-family: monospace; font-size: 16px; background: #fff; padding: 10px; border: 1px dashed #2e7d5b; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>You're invited!</h1>
		</div>
		<div class="content">
			<p>%s has invited you to share the <strong>%s</strong> family budget.</p>
			<p>Sign in and enter this invite code to join:</p>
			<p class="code">%s</p>
			<p>Or open this link: <a href="%s">%s</a></p>
			<p>The code can be used once.</p>
		</div>
		<div class="footer">
			<p>This is an automated email from Family Budget. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, html.EscapeString(inviterName), html.EscapeString(familyName), code, joinLink, joinLink)

	textBody := fmt.Sprintf(`%s has invited you to share the %s family budget.

Sign in and enter this invite code to join:
%s

Or open this link: %s

The code can be used once.

---
This is an automated email from Family Budget. Please do not reply.
`, inviterName, familyName, code, joinLink)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	if s.debug {
		s.logger.WithFields(logrus.Fields{
			"from":      fromAddress,
			"to":        toEmail,
			"subject":   subject,
			"html_size": len(htmlBody),
			"text_size": len(textBody),
		}).Debug("calling SES SendEmail")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
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
		s.metrics.EmailSent(false)
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}
	s.metrics.EmailSent(true)

	entry := s.logger.WithFields(logrus.Fields{"to": toEmail, "subject": subject})
	if result != nil && result.MessageId != nil {
		entry = entry.WithField("message_id", *result.MessageId)
	}
	entry.Info("Email sent successfully")
	return nil
}
