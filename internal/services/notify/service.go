// Package notify sends escalation emails to the HR recipients when a
// conversation turn asks for a human. Sending is best-effort; callers fire
// it in the background and only the log records failures.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
)

// sendFunc matches smtp.SendMail, injectable for tests
type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Service implements the NotificationService interface
type Service struct {
	config *common.EscalationConfig
	send   sendFunc
	logger arbor.ILogger
}

// NewService creates an escalation notifier
func NewService(config *common.EscalationConfig, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		send:   smtp.SendMail,
		logger: logger,
	}
}

// SendEscalation emails the escalated turn to the configured recipients.
// A disabled or unconfigured notifier is a logged no-op.
func (s *Service) SendEscalation(ctx context.Context, deviceID, query, answer string) error {
	if !s.config.Enabled {
		s.logger.Debug().Msg("Escalation notifications disabled, skipping")
		return nil
	}
	if s.config.SMTPHost == "" || s.config.From == "" || len(s.config.Recipients) == 0 {
		s.logger.Warn().Msg("Escalation enabled but SMTP settings incomplete, skipping notification")
		return nil
	}

	msg := s.buildMessage(deviceID, query, answer)
	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPHost)
	}

	if err := s.send(addr, auth, s.config.From, s.config.Recipients, []byte(msg)); err != nil {
		s.logger.Error().
			Err(err).
			Str("device_id", deviceID).
			Msg("Failed to send escalation email")
		return fmt.Errorf("failed to send escalation email: %w", err)
	}

	s.logger.Info().
		Str("device_id", deviceID).
		Int("recipients", len(s.config.Recipients)).
		Msg("Escalation email sent")

	return nil
}

// buildMessage renders the escalation email with headers and body
func (s *Service) buildMessage(deviceID, query, answer string) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(s.config.Recipients, ", ")))
	msg.WriteString("Subject: Escalated employee question\r\n")
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString("An employee question was escalated for human follow-up.\r\n\r\n")
	msg.WriteString(fmt.Sprintf("Device: %s\r\n", deviceID))
	msg.WriteString(fmt.Sprintf("Question: %s\r\n\r\n", query))
	msg.WriteString(fmt.Sprintf("Assistant answer before escalation:\r\n%s\r\n", answer))
	return msg.String()
}

// Ensure Service implements the interface
var _ interfaces.NotificationService = (*Service)(nil)
