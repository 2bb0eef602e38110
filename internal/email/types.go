package email

import "fmt"

// Email is one outgoing message.
type Email struct {
	From     string
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// TemplateData feeds the html templates.
type TemplateData map[string]interface{}

// FailureKind classifies a delivery failure so callers can map it to a
// user-facing message instead of a generic 500.
type FailureKind string

const (
	FailureInvalidRecipient FailureKind = "invalid_recipient"
	FailureMailboxFull      FailureKind = "mailbox_full"
	FailureConnection       FailureKind = "connection_failure"
	FailureAuth             FailureKind = "auth_failure"
	FailureUnknown          FailureKind = "unknown"
)

// SendError is the classified delivery error every provider returns.
type SendError struct {
	Kind FailureKind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("email delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
