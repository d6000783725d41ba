// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email sends transactional mail over SMTP.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwiecke/storefront/internal/config"
	"github.com/wneessen/go-mail"
)

// Sender delivers the transactional messages the auth flows need.
type Sender interface {
	SendVerification(ctx context.Context, to, actionToken string) error
	SendPasswordReset(ctx context.Context, to, resetCode string) error
	SendTwoFactorCode(ctx context.Context, to, code string) error
}

// Service sends email via SMTP using go-mail.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// SendVerification sends the email-verification link.
func (s *Service) SendVerification(ctx context.Context, to, actionToken string) error {
	verifyURL := fmt.Sprintf("%s/auth/verify-email?token=%s", s.baseURL, actionToken)
	body := fmt.Sprintf(`<h2>Verify Email</h2>
<p>Please click this link to verify your email:</p>
<a href="%s">%s</a>`, verifyURL, verifyURL)

	return s.send(ctx, to, "Verify Your Email", body)
}

// SendPasswordReset sends the reset code for the out-of-band channel.
func (s *Service) SendPasswordReset(ctx context.Context, to, resetCode string) error {
	body := fmt.Sprintf(`<h2>Password Reset</h2>
<p>You requested to reset your password.</p>
<p>Please return to the app and enter this code:</p>
<h3>%s</h3>
<p>This code will expire in 1 hour.</p>
<p>If you didn't request this, please ignore this email.</p>`, resetCode)

	return s.send(ctx, to, "Password Reset Request", body)
}

// SendTwoFactorCode sends the OTP to the user's second address.
func (s *Service) SendTwoFactorCode(ctx context.Context, to, code string) error {
	body := fmt.Sprintf(`<h2>Two-Factor Authentication</h2>
<p>You requested to verify your identity.</p>
<p>Please return to the app and enter this code:</p>
<h3>%s</h3>
<p>This code will expire in 10 minutes.</p>
<p>If you didn't request this, please ignore this email.</p>`, code)

	return s.send(ctx, to, "Two-Factor Authentication Code", body)
}

// send delivers one HTML message via SMTP.
func (s *Service) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Implicit TLS for port 465, STARTTLS for others
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
