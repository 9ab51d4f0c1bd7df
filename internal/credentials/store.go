package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/vrlab/calagent/internal/instrumentation"
	"github.com/vrlab/calagent/internal/logging"
)

// Source is the read side of the credential store used by the chat
// orchestrator. A (nil, nil) return means no bundle exists for the user,
// which is an expected outcome, not an error.
type Source interface {
	Load(ctx context.Context, userID string) (*oauth2.Token, error)
}

// FileStore keeps one JSON-serialized oauth2.Token per user identifier in a
// directory on disk. The file name is derived from the sanitized user
// identifier, so a hostile identifier cannot escape the directory.
type FileStore struct {
	dir     string
	conf    *oauth2.Config
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a file-backed credential store rooted at dir.
// The OAuth config is needed to refresh expired access tokens on load.
func NewFileStore(dir string, conf *oauth2.Config, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}
	return &FileStore{
		dir:    dir,
		conf:   conf,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// SetMetrics attaches a metrics recorder for token refresh events.
func (s *FileStore) SetMetrics(m *instrumentation.Metrics) {
	s.metrics = m
}

// SanitizeUserID neutralizes path-separator characters in a caller-supplied
// user identifier before it is used to derive a storage key.
func SanitizeUserID(userID string) string {
	userID = strings.ReplaceAll(userID, "/", "_")
	userID = strings.ReplaceAll(userID, "\\", "_")
	return userID
}

// userLock returns the mutex serializing operations for one sanitized user
// identifier, creating it on first use.
func (s *FileStore) userLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func (s *FileStore) tokenFile(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load retrieves the persisted token bundle for a user. If the stored access
// token is expired and a refresh token is present, the bundle is refreshed
// against the provider's token endpoint, persisted, and the refreshed form
// returned. A missing bundle yields (nil, nil).
func (s *FileStore) Load(ctx context.Context, userID string) (*oauth2.Token, error) {
	key := SanitizeUserID(userID)
	lock := s.userLock(key)
	lock.Lock()
	defer lock.Unlock()

	data, err := os.ReadFile(s.tokenFile(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials for user: %w", err)
	}

	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("failed to decode stored credentials: %w", err)
	}

	if tok.Valid() || tok.RefreshToken == "" {
		// Either still usable or not refreshable; hand back as stored.
		return tok, nil
	}

	s.logger.Debug("access token expired, refreshing",
		logging.Operation("credentials.refresh"),
		logging.UserHash(userID),
		slog.String("refresh_token", logging.SanitizeToken(tok.RefreshToken)))

	refreshed, err := s.conf.TokenSource(ctx, tok).Token()
	if err != nil {
		s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	// The token endpoint may omit the refresh token on renewal.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tok.RefreshToken
	}

	if err := s.storeLocked(key, refreshed); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	return refreshed, nil
}

// Store persists a token bundle for a user, replacing any prior bundle.
func (s *FileStore) Store(_ context.Context, userID string, tok *oauth2.Token) error {
	key := SanitizeUserID(userID)
	lock := s.userLock(key)
	lock.Lock()
	defer lock.Unlock()

	return s.storeLocked(key, tok)
}

// storeLocked writes the bundle for an already-sanitized key. The caller
// must hold the user lock.
func (s *FileStore) storeLocked(key string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(s.tokenFile(key), data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	s.logger.Info("credentials stored",
		logging.Operation("credentials.store"),
		logging.UserHash(key))
	return nil
}
