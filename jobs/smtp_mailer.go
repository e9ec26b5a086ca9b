package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds relay settings for SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	TLS      bool
}

// SMTPMailer delivers mail:send tasks through an SMTP relay, dialing per
// message.
type SMTPMailer struct {
	Config SMTPConfig
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func (m SMTPMailer) HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	msg, err := m.message(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	client, err := mail.NewClient(m.Config.Host, m.options()...)
	if err != nil {
		return fmt.Errorf("smtp mailer: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp mailer: send: %w", err)
	}
	return nil
}

func (m SMTPMailer) message(payload SendEmailPayload) (*mail.Msg, error) {
	if strings.TrimSpace(payload.To) == "" {
		return nil, errors.New("smtp mailer: recipient required")
	}
	msg := mail.NewMsg()
	if err := msg.FromFormat("Member Portal", m.Config.From); err != nil {
		return nil, fmt.Errorf("smtp mailer: from: %w", err)
	}
	if err := msg.To(payload.To); err != nil {
		return nil, fmt.Errorf("smtp mailer: to: %w", err)
	}
	// Header injection.
	msg.Subject(strings.NewReplacer("\r", "", "\n", "").Replace(payload.Subject))
	msg.SetBodyString(mail.TypeTextPlain, payload.Body)
	return msg, nil
}

func (m SMTPMailer) options() []mail.Option {
	port := m.Config.Port
	if port <= 0 {
		port = 587
	}
	opts := []mail.Option{mail.WithPort(port)}
	if m.Config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.Config.Username),
			mail.WithPassword(m.Config.Password),
		)
	}
	if m.Config.TLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	return opts
}
