// Package mail sends transactional notifications through the Brevo HTTP
// API. Delivery is best-effort everywhere: callers log and move on.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"course-access-platform/internal/domain/ports/adapter"
)

var _ adapter.MailGateway = (*Mailer)(nil)

type Mailer struct {
	apiURL   string
	apiKey   string
	from     string
	fromName string
	client   *http.Client
	log      *zerolog.Logger
}

func NewMailer(apiURL, apiKey, from, fromName string, logger *zerolog.Logger) *Mailer {
	mlog := logger.With().Str("component", "Mailer").Logger()
	return &Mailer{
		apiURL:   apiURL,
		apiKey:   apiKey,
		from:     from,
		fromName: fromName,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      &mlog,
	}
}

type sendRequest struct {
	Sender      party   `json:"sender"`
	To          []party `json:"to"`
	Subject     string  `json:"subject"`
	HTMLContent string  `json:"htmlContent"`
}

type party struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

func (m *Mailer) Send(ctx context.Context, to string, kind adapter.MailKind, params map[string]string) error {
	tpl, ok := templates[kind]
	if !ok {
		return fmt.Errorf("unknown mail kind %q", kind)
	}
	body := sendRequest{
		Sender:      party{Name: m.fromName, Email: m.from},
		To:          []party{{Email: to}},
		Subject:     render(tpl.subject, params),
		HTMLContent: render(tpl.html, params),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail send to %s (%s): status %d: %s", to, kind, resp.StatusCode, string(detail))
	}
	m.log.Debug().Str("to", to).Str("kind", string(kind)).Msg("mail sent")
	return nil
}

// render substitutes {{key}} placeholders; unknown keys stay literal so
// a template problem is visible in the delivered mail rather than
// silently blank.
func render(tpl string, params map[string]string) string {
	out := tpl
	for k, v := range params {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}

type template struct {
	subject string
	html    string
}

var templates = map[adapter.MailKind]template{
	adapter.MailPaymentSuccess: {
		subject: "Payment Successful - Welcome to your new level!",
		html:    `<p>Hi {{name}},</p><p>Your payment was processed successfully. You now have access to <strong>{{level_id}}</strong>.</p>`,
	},
	adapter.MailMotivation: {
		subject: "We miss you! Your course is waiting",
		html:    `<p>Hi {{name}},</p><p>It has been a while since your last session. You still have {{days_left}} days of access, come back and keep your streak going!</p>`,
	},
	adapter.MailSuspension: {
		subject: "Your account has been paused due to inactivity",
		html:    `<p>Hi {{name}},</p><p>Your account was paused after an extended period of inactivity. Sign in and recommit to pick up right where you left off.</p>`,
	},
	adapter.MailPauseConfirmed: {
		subject: "Your pause is confirmed",
		html:    `<p>Hi {{name}},</p><p>Your course access is paused. We will resume it automatically at the end of your pause window.</p>`,
	},
	adapter.MailResumeConfirmed: {
		subject: "Welcome back! Your course has resumed",
		html:    `<p>Hi {{name}},</p><p>Your pause has ended and your course access is active again.</p>`,
	},
	adapter.MailReactivated: {
		subject: "Your account is active again",
		html:    `<p>Hi {{name}},</p><p>Thanks for recommitting. Your account is fully active, let's get back to learning.</p>`,
	},
}
