package moneta

import (
	"context"
	"time"
)

// Names of the account events the auth flows record.
const (
	ActivityLogin           = "login"
	ActivityLogout          = "logout"
	ActivityEmailVerified   = "email_verified"
	ActivityPasswordReset   = "password_reset"
	ActivityPasswordChanged = "password_changed"
)

// Activity is a single security-relevant account event,
// e.g. {Name: ActivityLogin, Data: {"setId": ...}}.
type Activity struct {
	Name string
	Data map[string]interface{}
}

// ActivityLog is a stored Activity with its audit metadata.
type ActivityLog struct {
	Id        int64
	CreatedAt time.Time
	UserId    UserId
	Name      string
	Data      map[string]interface{}
}

// ActivityStore keeps a per-user audit trail of account events.
type ActivityStore interface {
	AddLog(ctx context.Context, userId UserId, activity Activity) error

	// ByUserId returns up to "limit" logs of the user, newest first.
	// A non-negative "beforeId" restricts the result to logs with
	// a smaller id, which is how clients page backwards.
	ByUserId(ctx context.Context, userId UserId, beforeId int64, limit int32) ([]ActivityLog, error)
}
