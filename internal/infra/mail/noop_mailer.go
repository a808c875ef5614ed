package mail

import (
	"context"

	"github.com/rs/zerolog"

	"course-access-platform/internal/domain/ports/adapter"
)

var _ adapter.MailGateway = (*NoopMailer)(nil)

// NoopMailer logs instead of sending. Used when mail is disabled in
// config, typically in development.
type NoopMailer struct {
	log *zerolog.Logger
}

func NewNoopMailer(logger *zerolog.Logger) *NoopMailer {
	mlog := logger.With().Str("component", "NoopMailer").Logger()
	return &NoopMailer{log: &mlog}
}

func (m *NoopMailer) Send(_ context.Context, to string, kind adapter.MailKind, params map[string]string) error {
	m.log.Info().Str("to", to).Str("kind", string(kind)).Interface("params", params).Msg("mail suppressed")
	return nil
}
