// Package notify implements the out-of-band delivery channel for one-time
// codes. The production channel is SMTP; the logging dispatcher exists only
// for development and is selected explicitly at wiring time.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/domodwyer/mailyak/v3"

	"github.com/toolhub/admin-gate/internal/core/port"
	"github.com/toolhub/admin-gate/internal/infra/config"
)

const codeSubject = "Your administrator verification code"

// SMTPDeliverer sends one-time codes to the operator's registered mailbox.
type SMTPDeliverer struct {
	cfg config.SMTPSettings
}

// NewSMTPDeliverer validates the SMTP settings and constructs a deliverer.
func NewSMTPDeliverer(cfg config.SMTPSettings) (*SMTPDeliverer, error) {
	switch {
	case strings.TrimSpace(cfg.Host) == "":
		return nil, errors.New("smtp host is required")
	case cfg.Port <= 0:
		return nil, errors.New("smtp port must be positive")
	case strings.TrimSpace(cfg.From) == "":
		return nil, errors.New("smtp from address is required")
	case strings.TrimSpace(cfg.To) == "":
		return nil, errors.New("smtp to address is required")
	}

	return &SMTPDeliverer{cfg: cfg}, nil
}

// Deliver sends the code and blocks until the send completes, fails, or the
// context expires. The caller bounds the context so a hung SMTP exchange
// cannot leave a verification operation in limbo.
func (d *SMTPDeliverer) Deliver(ctx context.Context, code string) error {
	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}

	mail := mailyak.New(fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port), auth)
	mail.From(d.cfg.From)
	mail.To(d.cfg.To)
	mail.Subject(codeSubject)
	mail.Plain().Set(fmt.Sprintf("Your verification code is %s. It expires in a few minutes; if you did not request it, ignore this message.", code))

	done := make(chan error, 1)
	go func() {
		done <- mail.Send()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

var _ port.CodeDeliverer = (*SMTPDeliverer)(nil)
