package mail

import (
	"context"

	"github.com/devsync/devsync/internal/logging"
)

// LogMailer writes would-be messages to the log instead of sending them.
// Used when no SMTP relay is configured.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationCode(ctx context.Context, to, name, code string) error {
	m.logger.Info(ctx, "mail suppressed, verification code", "to", to, "code", code)
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	m.logger.Info(ctx, "mail suppressed, password reset link", "to", to, "url", resetURL)
	return nil
}
