package email

import "time"

// SMTPConfig holds the SMTP server settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	UseTLS    bool
	Timeout   time.Duration
}

// DefaultConfig returns sane submission defaults.
func DefaultConfig() *SMTPConfig {
	return &SMTPConfig{
		Host:    "localhost",
		Port:    587,
		UseTLS:  true,
		Timeout: 30 * time.Second,
	}
}
