// Package rest exposes the account and session services over HTTP.
// Controllers install their routes into a fiber app; domain errors carry a
// stable machine-readable kind next to the human message.
package rest

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/moneta-app/moneta"
)

type ErrorResponse struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// domain sentinel -> (status, kind). The kind travels as the fiber.Error
// message and the error handler resolves the human text from it.
var domainErrors = []struct {
	err    error
	status int
	kind   string
}{
	{moneta.ErrNotAuthorized, fiber.StatusUnauthorized, "not-authorized"},
	{moneta.ErrInvalidToken, fiber.StatusUnauthorized, "not-authorized"},
	{moneta.ErrWrongCredentials, fiber.StatusUnauthorized, "wrong-credentials"},
	{moneta.ErrInvalidEmailVerification, fiber.StatusBadRequest, "invalid-email-verification"},
	{moneta.ErrInvalidPasswordResetRequest, fiber.StatusBadRequest, "invalid-password-reset-request"},
	{moneta.ErrBlacklistedToken, fiber.StatusForbidden, "blacklisted-token"},
	{moneta.ErrUidMismatch, fiber.StatusBadRequest, "uid-mismatch"},
	{moneta.ErrUnverifiedEmail, fiber.StatusForbidden, "unverified-email"},
	{moneta.ErrUserAlreadyExists, fiber.StatusConflict, "user-already-exist"},
	{moneta.ErrUserAlreadyVerified, fiber.StatusConflict, "user-already-verified"},
	{moneta.ErrUserNotFound, fiber.StatusNotFound, "user-does-not-exist"},
	{moneta.ErrSamePassword, fiber.StatusBadRequest, "same-password-reset-request"},
}

var kindMessages = map[string]string{
	"not-authorized":                 "Unauthorized",
	"wrong-credentials":              "Username or password is invalid!",
	"invalid-email-verification":     "Email verification is no longer valid!",
	"invalid-password-reset-request": "Password reset request is no longer valid!",
	"blacklisted-token":              "The current request had already been used.",
	"uid-mismatch":                   "UID in the request does not match the token's payload.",
	"unverified-email":               "Email is not verified!",
	"user-already-exist":             "User already exist!",
	"user-already-verified":          "User already had verified its email!",
	"user-does-not-exist":            "User does not exist!",
	"same-password-reset-request":    "New password and current password is the same!",
	"internal-server-error":          "Internal server error",
}

// domainError translates a service error into its http shape. Unknown
// errors pass through untouched and end up as internal server errors.
func domainError(err error) error {
	for _, mapping := range domainErrors {
		if errors.Is(err, mapping.err) {
			return fiber.NewError(mapping.status, mapping.kind)
		}
	}
	return err
}

func ErrorHandler(ctx *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		// Error.Message is interface{}; NewError only ever stores strings
		kind, _ := fe.Message.(string)
		message, known := kindMessages[kind]
		if !known {
			message = kind
		}
		return ctx.
			Status(fe.Code).
			JSON(&ErrorResponse{Error: kind, ErrorMessage: message})
	}
	requestLog(ctx).WithError(err).Errorln("Internal server error.")
	// keep internal server errors private. reply with generic error message.
	return ctx.
		Status(fiber.StatusInternalServerError).
		JSON(&ErrorResponse{
			Error:        "internal-server-error",
			ErrorMessage: kindMessages["internal-server-error"],
		})
}

func NotFoundHandler(ctx *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusNotFound)
}

func combineHandlers(handlers ...fiber.Handler) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		for _, handler := range handlers {
			err := handler(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	}
}

func JsonErrorMessageResponse(kind string) string {
	message, known := kindMessages[kind]
	if !known {
		message = kind
	}
	bytes, err := json.Marshal(ErrorResponse{Error: kind, ErrorMessage: message})
	if err != nil {
		panic(err)
	}
	return string(bytes)
}
