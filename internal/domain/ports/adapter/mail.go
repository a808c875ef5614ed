package adapter

import "context"

// MailKind selects a server-side template.
type MailKind string

const (
	MailPaymentSuccess  MailKind = "payment_success"
	MailMotivation      MailKind = "motivation"
	MailSuspension      MailKind = "suspension"
	MailPauseConfirmed  MailKind = "pause_confirmed"
	MailResumeConfirmed MailKind = "resume_confirmed"
	MailReactivated     MailKind = "reactivated"
)

// MailGateway sends a templated notification. Sending is best-effort
// everywhere in this system: callers log failures and never let them
// fail a state transition.
type MailGateway interface {
	Send(ctx context.Context, to string, kind MailKind, params map[string]string) error
}
