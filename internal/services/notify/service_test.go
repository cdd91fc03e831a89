package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestService(t *testing.T, config *common.EscalationConfig) (*Service, *[]capturedMail) {
	t.Helper()
	var sent []capturedMail
	service := NewService(config, arbor.NewLogger())
	service.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, capturedMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return service, &sent
}

func enabledConfig() *common.EscalationConfig {
	return &common.EscalationConfig{
		Enabled:    true,
		SMTPHost:   "smtp.example.com",
		SMTPPort:   587,
		Username:   "bot@example.com",
		Password:   "secret",
		From:       "bot@example.com",
		Recipients: []string{"hr@example.com", "lead@example.com"},
	}
}

func TestSendEscalation(t *testing.T) {
	service, sent := newTestService(t, enabledConfig())

	err := service.SendEscalation(context.Background(), "device-1", "Can I talk to HR?", "I could not resolve this.")
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.Equal(t, "bot@example.com", mail.from)
	assert.Equal(t, []string{"hr@example.com", "lead@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Escalated employee question")
	assert.Contains(t, mail.msg, "Device: device-1")
	assert.Contains(t, mail.msg, "Can I talk to HR?")
}

func TestSendEscalation_DisabledIsNoOp(t *testing.T) {
	config := enabledConfig()
	config.Enabled = false
	service, sent := newTestService(t, config)

	err := service.SendEscalation(context.Background(), "device-1", "query", "answer")
	assert.NoError(t, err)
	assert.Empty(t, *sent)
}

func TestSendEscalation_IncompleteConfigIsNoOp(t *testing.T) {
	config := enabledConfig()
	config.Recipients = nil
	service, sent := newTestService(t, config)

	err := service.SendEscalation(context.Background(), "device-1", "query", "answer")
	assert.NoError(t, err)
	assert.Empty(t, *sent)
}

func TestSendEscalation_SendFailure(t *testing.T) {
	service, _ := newTestService(t, enabledConfig())
	service.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		return fmt.Errorf("connection refused")
	}

	err := service.SendEscalation(context.Background(), "device-1", "query", "answer")
	assert.Error(t, err)
}
