package moneta

import "context"

// Mailer delivers single-use tokens out-of-band. Delivery itself is an
// external concern; the auth core only hands tokens over.
type Mailer interface {
	SendEmailVerification(ctx context.Context, to Email, token string) error

	SendPasswordReset(ctx context.Context, to Email, token string) error
}
