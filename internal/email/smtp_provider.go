package email

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
)

// SMTPProvider implements Provider over net/smtp.
type SMTPProvider struct {
	config   *SMTPConfig
	auth     smtp.Auth
	renderer TemplateRenderer
}

func NewSMTPProvider(config *SMTPConfig, renderer TemplateRenderer) *SMTPProvider {
	var auth smtp.Auth
	if config.Username != "" && config.Password != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	return &SMTPProvider{
		config:   config,
		auth:     auth,
		renderer: renderer,
	}
}

// Send delivers the message. Any failure is returned classified.
func (p *SMTPProvider) Send(email *Email) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if email.From == "" {
		email.From = p.config.FromEmail
	}

	message := p.buildMessage(email)
	addr := fmt.Sprintf("%s:%d", p.config.Host, p.config.Port)

	if p.config.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: p.config.Host,
		}

		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return ClassifyError(err)
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, p.config.Host)
		if err != nil {
			return ClassifyError(err)
		}
		defer client.Close()

		return p.sendWithClient(client, email, message)
	}

	if err := smtp.SendMail(addr, p.auth, email.From, email.To, message); err != nil {
		return ClassifyError(err)
	}
	return nil
}

func (p *SMTPProvider) sendWithClient(client *smtp.Client, email *Email, message []byte) error {
	if p.auth != nil {
		if err := client.Auth(p.auth); err != nil {
			return ClassifyError(err)
		}
	}
	if err := client.Mail(email.From); err != nil {
		return ClassifyError(err)
	}
	for _, rcpt := range email.To {
		if err := client.Rcpt(rcpt); err != nil {
			return ClassifyError(err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return ClassifyError(err)
	}
	if _, err := w.Write(message); err != nil {
		_ = w.Close()
		return ClassifyError(err)
	}
	if err := w.Close(); err != nil {
		return ClassifyError(err)
	}
	return client.Quit()
}

// SendVerification delivers the verification link.
func (p *SMTPProvider) SendVerification(to string, link string) error {
	body, err := p.render(TemplateVerification, TemplateData{"Link": link})
	if err != nil {
		return &SendError{Kind: FailureUnknown, Err: err}
	}
	return p.Send(&Email{
		To:       []string{to},
		Subject:  "Verify your CareWorks account",
		HTMLBody: body,
	})
}

// SendOTP delivers the password-reset code as plain text in the body.
func (p *SMTPProvider) SendOTP(to string, code string) error {
	body, err := p.render(TemplatePasswordReset, TemplateData{"Code": code})
	if err != nil {
		return &SendError{Kind: FailureUnknown, Err: err}
	}
	return p.Send(&Email{
		To:       []string{to},
		Subject:  "Your CareWorks password reset code",
		HTMLBody: body,
	})
}

func (p *SMTPProvider) render(name string, data TemplateData) (string, error) {
	if p.renderer == nil {
		return "", fmt.Errorf("template renderer is not configured")
	}
	return p.renderer.Render(name, data)
}

// Validate checks the SMTP configuration.
func (p *SMTPProvider) Validate() error {
	if p.config.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if p.config.Port <= 0 || p.config.Port > 65535 {
		return fmt.Errorf("invalid SMTP port: %d", p.config.Port)
	}
	return nil
}

// Close is a no-op for SMTP; connections are per-send.
func (p *SMTPProvider) Close() error {
	return nil
}

// buildMessage assembles the MIME message.
func (p *SMTPProvider) buildMessage(email *Email) []byte {
	builder := &strings.Builder{}

	from := email.From
	if p.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", p.config.FromName, email.From)
	}
	builder.WriteString(fmt.Sprintf("From: %s\r\n", from))
	builder.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(email.To, ",")))
	builder.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	builder.WriteString("MIME-Version: 1.0\r\n")

	if email.HTMLBody != "" {
		builder.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		builder.WriteString(email.HTMLBody)
	} else {
		builder.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		builder.WriteString(email.Body)
	}

	return []byte(builder.String())
}

// ClassifyError sorts a transport error into a delivery failure kind.
// SMTP reply codes: 550/553/501 bad recipient, 552/452 over quota,
// 530/534/535 auth; dial and timeout errors are connection failures.
func ClassifyError(err error) *SendError {
	if err == nil {
		return nil
	}

	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case 501, 550, 553:
			return &SendError{Kind: FailureInvalidRecipient, Err: err}
		case 452, 552:
			return &SendError{Kind: FailureMailboxFull, Err: err}
		case 530, 534, 535:
			return &SendError{Kind: FailureAuth, Err: err}
		}
		return &SendError{Kind: FailureUnknown, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &SendError{Kind: FailureConnection, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &SendError{Kind: FailureConnection, Err: err}
	}

	return &SendError{Kind: FailureUnknown, Err: err}
}
