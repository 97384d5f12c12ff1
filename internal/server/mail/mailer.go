// Package mail delivers the transactional messages the auth flows send:
// verification codes and password reset links. SMTPMailer is the production
// implementation; LogMailer stands in during local development so the flows
// work without an SMTP relay.
package mail

import "context"

type Mailer interface {
	SendVerificationCode(ctx context.Context, to, name, code string) error
	SendPasswordReset(ctx context.Context, to, name, resetURL string) error
}
