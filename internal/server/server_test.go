package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrlab/calagent/internal/authflow"
)

type fakeAuth struct {
	authURL  string
	beginErr error

	result      authflow.Result
	completeErr error

	callbackURL string
}

func (f *fakeAuth) BeginAuthorization(userID string) (string, string, error) {
	if f.beginErr != nil {
		return "", "", f.beginErr
	}
	return f.authURL + "?hint=" + userID, "state-1", nil
}

func (f *fakeAuth) CompleteAuthorization(_ context.Context, callbackURL string) (authflow.Result, error) {
	f.callbackURL = callbackURL
	return f.result, f.completeErr
}

type fakeChat struct {
	reply string
	err   error

	userID  string
	message string
}

func (f *fakeChat) Handle(_ context.Context, userID, message string) (string, error) {
	f.userID = userID
	f.message = message
	return f.reply, f.err
}

func newTestServer(auth AuthFlow, chat ChatService) *Server {
	return New(Config{}, auth, chat, slog.New(slog.DiscardHandler), nil)
}

func TestHandleRoot(t *testing.T) {
	srv := newTestServer(&fakeAuth{}, &fakeChat{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "online", body.Status)
	assert.Equal(t, "VR Agent API is running", body.Message)
}

func TestHandleAuthGoogle_Redirects(t *testing.T) {
	auth := &fakeAuth{authURL: "https://accounts.example.com/auth"}
	srv := newTestServer(auth, &fakeChat{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google?user_id=alice", nil))

	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "https://accounts.example.com/auth")
}

func TestHandleAuthGoogle_MissingUserID(t *testing.T) {
	srv := newTestServer(&fakeAuth{}, &fakeChat{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Detail, "user_id")
}

func TestHandleAuthGoogle_BeginFailureIsLenient(t *testing.T) {
	auth := &fakeAuth{beginErr: errors.New("client id not configured")}
	srv := newTestServer(auth, &fakeChat{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google?user_id=alice", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body authflow.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Contains(t, body.Message, "Failed to initiate authentication")
}

func TestHandleAuthCallback_Success(t *testing.T) {
	auth := &fakeAuth{result: authflow.Result{
		Status:  "success",
		Message: "Successfully authenticated with Google Calendar",
	}}
	srv := newTestServer(auth, &fakeChat{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state=s1&code=c1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body authflow.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)

	// The full callback URL, query included, reaches the flow manager.
	assert.Contains(t, auth.callbackURL, "state=s1")
	assert.Contains(t, auth.callbackURL, "code=c1")
}

func TestHandleAuthCallback_InvalidState(t *testing.T) {
	auth := &fakeAuth{completeErr: authflow.ErrInvalidState}
	srv := newTestServer(auth, &fakeChat{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state=forged&code=c1", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid or expired OAuth state", body.Detail)
}

func TestHandleAuthCallback_ExchangeFailureIsLenient(t *testing.T) {
	auth := &fakeAuth{result: authflow.Result{
		Status:  "error",
		Message: "Authentication failed: token exchange rejected",
	}}
	srv := newTestServer(auth, &fakeChat{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state=s1&code=bad", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body authflow.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
}

func TestHandleChat_Success(t *testing.T) {
	chat := &fakeChat{reply: "You're free all afternoon."}
	srv := newTestServer(&fakeAuth{}, chat)

	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"message":"What's on my calendar?","user_id":"alice"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "You're free all afternoon.", body.Reply)
	assert.Equal(t, "alice", chat.userID)
	assert.Equal(t, "What's on my calendar?", chat.message)
}

func TestHandleChat_MalformedBody(t *testing.T) {
	srv := newTestServer(&fakeAuth{}, &fakeChat{})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Detail, "Validation error")
}

func TestHandleChat_MissingFields(t *testing.T) {
	srv := newTestServer(&fakeAuth{}, &fakeChat{})

	for _, payload := range []string{
		`{}`,
		`{"message":"hi"}`,
		`{"user_id":"alice"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "payload %s", payload)
	}
}

func TestHandleChat_InternalFault(t *testing.T) {
	chat := &fakeChat{err: errors.New("completion service: upstream 503")}
	srv := newTestServer(&fakeAuth{}, chat)

	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"message":"hi","user_id":"alice"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body.Detail, "503", "internal detail must not leak")
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(&fakeAuth{}, &fakeChat{})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://vr.example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

type panicChat struct{}

func (panicChat) Handle(context.Context, string, string) (string, error) {
	panic("boom")
}

func TestRecoverMiddleware_PanicBecomes500(t *testing.T) {
	srv := newTestServer(&fakeAuth{}, panicChat{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"message":"hi","user_id":"alice"}`))
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "An error occurred", body.Detail)
}
