package app

import (
	"careworks_backend/internal/email"
	"careworks_backend/internal/logger"
)

// MockEmailProvider logs instead of sending. Used in development when SMTP
// is not configured, so registration still completes locally.
type MockEmailProvider struct{}

func (m *MockEmailProvider) Send(e *email.Email) error {
	logger.Info("[mock email] send", "to", e.To, "subject", e.Subject)
	return nil
}

func (m *MockEmailProvider) SendVerification(to string, link string) error {
	logger.Info("[mock email] verification", "to", to, "link", link)
	return nil
}

func (m *MockEmailProvider) SendOTP(to string, code string) error {
	logger.Info("[mock email] otp", "to", to, "code", code)
	return nil
}

func (m *MockEmailProvider) Validate() error { return nil }

func (m *MockEmailProvider) Close() error { return nil }
