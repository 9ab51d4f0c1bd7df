package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/vrlab/calagent/internal/google"
	"github.com/vrlab/calagent/internal/logging"
)

// ErrInvalidState is returned when a callback presents a state that is
// missing, was never issued, was already consumed, or has expired.
var ErrInvalidState = errors.New("invalid or expired oauth state")

// TokenSink receives the token bundle obtained from a completed code
// exchange. Implemented by the credential store.
type TokenSink interface {
	Store(ctx context.Context, userID string, tok *oauth2.Token) error
}

// Result is the outcome of a completed authorization attempt, suitable for
// serializing straight back to the callback caller.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Manager drives the authorization-code flow against the OAuth provider.
type Manager struct {
	conf   *oauth2.Config
	states *StateStore
	creds  TokenSink
	logger *slog.Logger
}

// NewManager creates an OAuth flow manager.
func NewManager(conf *oauth2.Config, states *StateStore, creds TokenSink, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		conf:   conf,
		states: states,
		creds:  creds,
		logger: logger,
	}
}

// BeginAuthorization issues a provider authorization URL for the user and
// registers the state token binding. The caller is expected to redirect the
// user's browser to the returned URL.
func (m *Manager) BeginAuthorization(userID string) (authURL, state string, err error) {
	state, err = m.states.Issue(userID)
	if err != nil {
		return "", "", err
	}

	m.logger.Info("authorization started",
		logging.Operation("authflow.begin"),
		logging.UserHash(userID))

	return google.AuthCodeURL(m.conf, state), state, nil
}

// CompleteAuthorization handles the provider callback. It validates and
// consumes the state, exchanges the authorization code for a token bundle,
// and hands the bundle to the credential store keyed by the bound user.
//
// State problems surface as ErrInvalidState. Provider and storage faults are
// mapped into an error Result with a nil error, mirroring the lenient
// behavior of the callback route.
func (m *Manager) CompleteAuthorization(ctx context.Context, callbackURL string) (Result, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: unparseable callback url", ErrInvalidState)
	}

	q := u.Query()
	state := q.Get("state")
	if state == "" {
		return Result{}, ErrInvalidState
	}

	userID, ok := m.states.Consume(state)
	if !ok {
		m.logger.Warn("rejected oauth callback",
			logging.Operation("authflow.complete"),
			logging.Err(ErrInvalidState))
		return Result{}, ErrInvalidState
	}

	logger := m.logger.With(
		logging.Operation("authflow.complete"),
		logging.UserHash(userID))

	code := q.Get("code")
	if code == "" {
		logger.Warn("callback missing authorization code")
		return Result{Status: "error", Message: "Authentication failed: no authorization code in callback"}, nil
	}

	tok, err := m.conf.Exchange(ctx, code)
	if err != nil {
		logger.Error("code exchange failed", logging.Err(err))
		return Result{Status: "error", Message: fmt.Sprintf("Authentication failed: %v", err)}, nil
	}

	if err := m.creds.Store(ctx, userID, tok); err != nil {
		logger.Error("failed to store credentials", logging.Err(err))
		return Result{Status: "error", Message: "Authentication succeeded but storing credentials failed"}, nil
	}

	logger.Info("authorization completed", logging.Status(logging.StatusSuccess))
	return Result{Status: "success", Message: "Successfully authenticated with Google Calendar"}, nil
}
