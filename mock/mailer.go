package mock

import (
	"context"
	"sync"

	"github.com/moneta-app/moneta"
)

// Mailer records handed-over tokens instead of sending anything.
type Mailer struct {
	mutex sync.Mutex

	Verifications  []SentMail
	PasswordResets []SentMail
}

type SentMail struct {
	To    moneta.Email
	Token string
}

var _ moneta.Mailer = (*Mailer)(nil)

func (m *Mailer) SendEmailVerification(ctx context.Context, to moneta.Email, token string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Verifications = append(m.Verifications, SentMail{To: to, Token: token})
	return nil
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to moneta.Email, token string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.PasswordResets = append(m.PasswordResets, SentMail{To: to, Token: token})
	return nil
}

// LastVerification returns the most recent verification token, or empty.
func (m *Mailer) LastVerification() (SentMail, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.Verifications) == 0 {
		return SentMail{}, false
	}
	return m.Verifications[len(m.Verifications)-1], true
}

// LastPasswordReset returns the most recent reset token, or empty.
func (m *Mailer) LastPasswordReset() (SentMail, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.PasswordResets) == 0 {
		return SentMail{}, false
	}
	return m.PasswordResets[len(m.PasswordResets)-1], true
}
