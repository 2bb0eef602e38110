package email

// Provider is the mail sender the auth service talks to. It is injected,
// never a package singleton, so tests can substitute a fake that records
// calls and simulates each failure kind.
type Provider interface {
	// Send delivers one message. Failures come back as *SendError.
	Send(email *Email) error

	// SendVerification delivers the account-verification link.
	SendVerification(to string, link string) error

	// SendOTP delivers the password-reset code.
	SendOTP(to string, code string) error

	// Validate checks the provider configuration.
	Validate() error

	// Close releases provider resources.
	Close() error
}

// TemplateRenderer renders named templates to HTML bodies.
type TemplateRenderer interface {
	Render(templateName string, data TemplateData) (string, error)
	AddTemplate(name string, template string) error
	LoadTemplates(dirPath string) error
}
