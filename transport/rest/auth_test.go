package rest

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/moneta-app/moneta"
	"github.com/moneta-app/moneta/auth"
	"github.com/moneta-app/moneta/inmem"
	"github.com/moneta-app/moneta/mock"
	"github.com/moneta-app/moneta/persistent"
	"github.com/moneta-app/moneta/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/buntdb"
)

type testEnv struct {
	current time.Time

	app     *fiber.App
	service *auth.Service
	mailer  *mock.Mailer
}

func (e *testEnv) now() time.Time { return e.current }

func (e *testEnv) advance(d time.Duration) { e.current = e.current.Add(d) }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	bunt, err := buntdb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunt.Close() })

	env := &testEnv{current: time.Now(), mailer: &mock.Mailer{}}
	users := inmem.NewUserStore()
	activities := inmem.NewActivityStore()
	env.service = &auth.Service{
		Tokens: &token.Service{
			Config: token.Config{
				AccessSecret:            []byte("access-secret"),
				RefreshSecret:           []byte("refresh-secret"),
				EmailVerificationSecret: []byte("email-secret"),
				PasswordResetSecret:     []byte("reset-secret"),
			},
			Now: env.now,
		},
		Sessions:   &persistent.SessionStore{Buntdb: bunt, Now: env.now},
		Revoked:    &persistent.RevocationStore{Buntdb: bunt, Now: env.now},
		Users:      &users,
		Mailer:     env.mailer,
		Activities: &activities,
		Now:        env.now,
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	requestAuthorizer := RequestAuthorizer(env.service)
	(&AuthController{Service: env.service}).InstallTo(app)
	(&UserController{Service: env.service, Users: &users}).InstallTo(requestAuthorizer, app)
	(&SessionController{Store: env.service.Sessions}).InstallTo(requestAuthorizer, app)
	(&ActivityController{Store: &activities}).InstallTo(requestAuthorizer, app)
	app.Use(NotFoundHandler)
	env.app = app
	return env
}

func (e *testEnv) request(t *testing.T, method, path, body string, accessToken string) *http.Response {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if accessToken != "" {
		req.AddCookie(&http.Cookie{Name: "access_token", Value: accessToken})
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	bodyBytes, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(bodyBytes)
}

func accessCookie(resp *http.Response) (string, bool) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "access_token" {
			return cookie.Value, true
		}
	}
	return "", false
}

// registerVerified drives registration end to end over http: create the
// account, then verify the mailed token.
func (e *testEnv) registerVerified(t *testing.T, username, email, password string) string {
	t.Helper()
	resp := e.request(t, "POST", "/users",
		`{"username": "`+username+`", "email": "`+email+`", "password": "`+password+`"}`, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created struct {
		Uid string `json:"uid"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &created))

	sent, ok := e.mailer.LastVerification()
	require.True(t, ok)
	resp = e.request(t, "POST", "/auth/verify-email",
		`{"uid": "`+created.Uid+`", "email": "`+email+`", "token": "`+sent.Token+`"}`, "")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	return created.Uid
}

func (e *testEnv) login(t *testing.T, username, password string) (accessToken string, setId string) {
	t.Helper()
	resp := e.request(t, "POST", "/auth/login",
		`{"username": "`+username+`", "password": "`+password+`"}`, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	accessToken, ok := accessCookie(resp)
	require.True(t, ok)
	var body struct {
		SetId string `json:"setId"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &body))
	return accessToken, body.SetId
}

func Test_RegisterLoginMeFlow(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)

	env.registerVerified(t, "makin", "makin@moneta.app", "korbo123")
	accessToken, _ := env.login(t, "makin", "korbo123")

	resp := env.request(t, "GET", "/users/me", "", accessToken)
	assert.Equal(fiber.StatusOK, resp.StatusCode)
	var me struct {
		Username      string `json:"username"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"emailVerified"`
	}
	assert.NoError(json.Unmarshal([]byte(readBody(t, resp)), &me))
	assert.Equal("makin", me.Username)
	assert.Equal("makin@moneta.app", me.Email)
	assert.True(me.EmailVerified)
}

func Test_LoginWrongPassword(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)
	env.registerVerified(t, "makin", "makin@moneta.app", "korbo123")

	resp := env.request(t, "POST", "/auth/login",
		`{"username": "makin", "password": "nope"}`, "")
	assert.Equal(fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(JsonErrorMessageResponse("wrong-credentials"), readBody(t, resp))
}

func Test_RegisterDuplicate(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)
	env.registerVerified(t, "makin", "makin@moneta.app", "korbo123")

	resp := env.request(t, "POST", "/users",
		`{"username": "makin", "email": "other@moneta.app", "password": "korbo123"}`, "")
	assert.Equal(fiber.StatusConflict, resp.StatusCode)
	assert.Equal(JsonErrorMessageResponse("user-already-exist"), readBody(t, resp))
}

func Test_MissingAccessCookie(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)

	resp := env.request(t, "GET", "/users/me", "", "")
	assert.Equal(fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(JsonErrorMessageResponse("not-authorized"), readBody(t, resp))
}

func Test_SilentRefreshSetsCookie(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)
	env.registerVerified(t, "makin", "makin@moneta.app", "korbo123")
	accessToken, _ := env.login(t, "makin", "korbo123")

	// fresh token: no replacement cookie on the response
	resp := env.request(t, "GET", "/users/me", "", accessToken)
	assert.Equal(fiber.StatusOK, resp.StatusCode)
	_, rotated := accessCookie(resp)
	assert.False(rotated)

	env.advance(11 * time.Minute)

	resp = env.request(t, "GET", "/users/me", "", accessToken)
	assert.Equal(fiber.StatusOK, resp.StatusCode)
	replacement, rotated := accessCookie(resp)
	assert.True(rotated)
	assert.NotEqual(accessToken, replacement)

	// the replacement works on its own
	resp = env.request(t, "GET", "/users/me", "", replacement)
	assert.Equal(fiber.StatusOK, resp.StatusCode)
}

func Test_LogoutFlow(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)
	env.registerVerified(t, "makin", "makin@moneta.app", "korbo123")
	accessToken, _ := env.login(t, "makin", "korbo123")

	resp := env.request(t, "DELETE", "/auth/logout", "", accessToken)
	assert.Equal(fiber.StatusNoContent, resp.StatusCode)
	cleared, ok := accessCookie(resp)
	assert.True(ok)
	assert.Empty(cleared)

	// the token is dead inside its natural lifespan
	resp = env.request(t, "GET", "/users/me", "", accessToken)
	assert.Equal(fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(JsonErrorMessageResponse("not-authorized"), readBody(t, resp))
}

func Test_SessionsEndpoint(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)
	env.registerVerified(t, "makin", "makin@moneta.app", "korbo123")

	laptopToken, laptopSetId := env.login(t, "makin", "korbo123")
	_, phoneSetId := env.login(t, "makin", "korbo123")

	resp := env.request(t, "GET", "/auth/sessions", "", laptopToken)
	assert.Equal(fiber.StatusOK, resp.StatusCode)
	var sessions []struct {
		SetId   string `json:"setId"`
		Current bool   `json:"current"`
	}
	assert.NoError(json.Unmarshal([]byte(readBody(t, resp)), &sessions))
	assert.Len(sessions, 2)
	for _, session := range sessions {
		assert.Equal(session.SetId == laptopSetId, session.Current)
	}

	resp = env.request(t, "DELETE", "/auth/sessions/"+phoneSetId, "", laptopToken)
	assert.Equal(fiber.StatusNoContent, resp.StatusCode)

	resp = env.request(t, "GET", "/auth/sessions", "", laptopToken)
	assert.Equal(fiber.StatusOK, resp.StatusCode)
	sessions = nil
	assert.NoError(json.Unmarshal([]byte(readBody(t, resp)), &sessions))
	assert.Len(sessions, 1)
	assert.Equal(laptopSetId, sessions[0].SetId)
}

func Test_RemovedSessionRejectedAfterExpiry(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)
	env.registerVerified(t, "makin", "makin@moneta.app", "korbo123")
	accessToken, setId := env.login(t, "makin", "korbo123")

	resp := env.request(t, "DELETE", "/auth/sessions/"+setId, "", accessToken)
	assert.Equal(fiber.StatusNoContent, resp.StatusCode)

	// the token itself stays good until its lifespan runs out
	resp = env.request(t, "GET", "/users/me", "", accessToken)
	assert.Equal(fiber.StatusOK, resp.StatusCode)

	// no session left to refresh through
	env.advance(11 * time.Minute)
	resp = env.request(t, "GET", "/users/me", "", accessToken)
	assert.Equal(fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(JsonErrorMessageResponse("not-authorized"), readBody(t, resp))
}

func Test_PasswordResetFlow(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)
	env.registerVerified(t, "makin", "makin@moneta.app", "korbo123")

	resp := env.request(t, "POST", "/auth/password-reset-request",
		`{"email": "makin@moneta.app"}`, "")
	assert.Equal(fiber.StatusAccepted, resp.StatusCode)
	sent, ok := env.mailer.LastPasswordReset()
	assert.True(ok)

	resp = env.request(t, "PATCH", "/auth/password-reset",
		`{"token": "`+sent.Token+`", "newPassword": "fresh456"}`, "")
	assert.Equal(fiber.StatusNoContent, resp.StatusCode)

	// spent token: replay is rejected
	resp = env.request(t, "PATCH", "/auth/password-reset",
		`{"token": "`+sent.Token+`", "newPassword": "sneaky789"}`, "")
	assert.Equal(fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(JsonErrorMessageResponse("blacklisted-token"), readBody(t, resp))

	env.login(t, "makin", "fresh456")
}

func Test_VerifyEmailReplay(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/users",
		`{"username": "makin", "email": "makin@moneta.app", "password": "korbo123"}`, "")
	assert.Equal(fiber.StatusCreated, resp.StatusCode)
	var created struct {
		Uid string `json:"uid"`
	}
	assert.NoError(json.Unmarshal([]byte(readBody(t, resp)), &created))
	sent, ok := env.mailer.LastVerification()
	assert.True(ok)

	verifyBody := `{"uid": "` + created.Uid + `", "email": "makin@moneta.app", "token": "` + sent.Token + `"}`
	resp = env.request(t, "POST", "/auth/verify-email", verifyBody, "")
	assert.Equal(fiber.StatusNoContent, resp.StatusCode)

	resp = env.request(t, "POST", "/auth/verify-email", verifyBody, "")
	assert.Equal(fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(JsonErrorMessageResponse("blacklisted-token"), readBody(t, resp))
}

func Test_ChangePasswordEndpoint(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)
	env.registerVerified(t, "makin", "makin@moneta.app", "korbo123")
	accessToken, _ := env.login(t, "makin", "korbo123")

	resp := env.request(t, "PATCH", "/users/me/password",
		`{"newPassword": "korbo123"}`, accessToken)
	assert.Equal(fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(JsonErrorMessageResponse("same-password-reset-request"), readBody(t, resp))

	resp = env.request(t, "PATCH", "/users/me/password",
		`{"newPassword": "fresh456"}`, accessToken)
	assert.Equal(fiber.StatusNoContent, resp.StatusCode)

	env.login(t, "makin", "fresh456")
}

func Test_ActivityEndpoint(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)
	env.registerVerified(t, "makin", "makin@moneta.app", "korbo123")
	accessToken, _ := env.login(t, "makin", "korbo123")

	resp := env.request(t, "GET", "/users/me/activity", "", accessToken)
	assert.Equal(fiber.StatusOK, resp.StatusCode)
	var logs []struct {
		Name string `json:"name"`
	}
	assert.NoError(json.Unmarshal([]byte(readBody(t, resp)), &logs))
	if assert.GreaterOrEqual(len(logs), 2) {
		// newest first: the login follows the email verification
		assert.Equal(moneta.ActivityLogin, logs[0].Name)
		assert.Equal(moneta.ActivityEmailVerified, logs[1].Name)
	}
}

func Test_ErrorHandlerKindResolution(t *testing.T) {
	assert := assert.New(t)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/known", func(ctx *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusForbidden, "blacklisted-token")
	})
	app.Get("/unknown", func(ctx *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "t.e.a.")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/known", nil))
	require.NoError(t, err)
	assert.Equal(fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(JsonErrorMessageResponse("blacklisted-token"), readBody(t, resp))

	// a kind without a registered message echoes itself
	resp, err = app.Test(httptest.NewRequest("GET", "/unknown", nil))
	require.NoError(t, err)
	assert.Equal(fiber.StatusTeapot, resp.StatusCode)
	assert.Equal(`{"error":"t.e.a.","error_message":"t.e.a."}`, readBody(t, resp))
}

func Test_InvalidBody(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/auth/login", `{"username": 12`, "")
	assert.Equal(fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(JsonErrorMessageResponse("invalid body"), readBody(t, resp))
}
