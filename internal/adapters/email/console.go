package email

import (
	"context"
	"log/slog"
	"sync"
)

// ConsoleMailer logs messages instead of delivering them. Development and
// test environments run with this so no real mail leaves the process.
type ConsoleMailer struct {
	log *slog.Logger

	mu   sync.Mutex
	sent []SentMessage
}

// SentMessage records one delivery for test assertions.
type SentMessage struct {
	To    string
	Token string
}

// NewConsoleMailer builds a ConsoleMailer.
func NewConsoleMailer(logger *slog.Logger) *ConsoleMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleMailer{log: logger.With("component", "email")}
}

// SendPasswordReset logs the reset token instead of mailing it.
func (m *ConsoleMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	m.mu.Lock()
	m.sent = append(m.sent, SentMessage{To: to, Token: token})
	m.mu.Unlock()
	m.log.InfoContext(ctx, "password reset email (console)", "to", to, "token", token)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (m *ConsoleMailer) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
