package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://example.com/auth",
			TokenURL: tokenURL,
		},
	}
}

func newTestStore(t *testing.T, tokenURL string) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), testConfig(tokenURL), testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestSanitizeUserID(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		want   string
	}{
		{"plain identifier", "alice", "alice"},
		{"forward slashes", "../etc/passwd", ".._etc_passwd"},
		{"backslashes", `..\windows\system32`, ".._windows_system32"},
		{"mixed separators", `a/b\c`, "a_b_c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeUserID(tt.userID); got != tt.want {
				t.Errorf("SanitizeUserID(%q) = %q, want %q", tt.userID, got, tt.want)
			}
		})
	}
}

func TestStoreLoad_RoundTrip(t *testing.T) {
	store := newTestStore(t, "https://example.com/token")
	ctx := context.Background()

	tok := &oauth2.Token{
		AccessToken:  "access-token",
		TokenType:    "Bearer",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	}

	if err := store.Store(ctx, "alice", tok); err != nil {
		t.Fatalf("Store: %v", err)
	}

	loaded, err := store.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned absent for stored bundle")
	}
	if loaded.AccessToken != tok.AccessToken {
		t.Errorf("access token = %q, want %q", loaded.AccessToken, tok.AccessToken)
	}
	if loaded.RefreshToken != tok.RefreshToken {
		t.Errorf("refresh token = %q, want %q", loaded.RefreshToken, tok.RefreshToken)
	}
}

func TestLoad_Absent(t *testing.T) {
	store := newTestStore(t, "https://example.com/token")

	tok, err := store.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tok != nil {
		t.Errorf("expected absent bundle, got %+v", tok)
	}
}

func TestStore_ReplacesPriorBundle(t *testing.T) {
	store := newTestStore(t, "https://example.com/token")
	ctx := context.Background()

	first := &oauth2.Token{AccessToken: "first", Expiry: time.Now().Add(time.Hour)}
	second := &oauth2.Token{AccessToken: "second", Expiry: time.Now().Add(time.Hour)}

	if err := store.Store(ctx, "alice", first); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := store.Store(ctx, "alice", second); err != nil {
		t.Fatalf("Store: %v", err)
	}

	loaded, err := store.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.AccessToken != "second" {
		t.Errorf("access token = %q, want replacement", loaded.AccessToken)
	}
}

func TestStore_SanitizesFileName(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, testConfig("https://example.com/token"), testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	tok := &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)}
	if err := store.Store(context.Background(), "../outside", tok); err != nil {
		t.Fatalf("Store: %v", err)
	}

	// The bundle must land inside the store directory, not a parent.
	if _, err := os.Stat(filepath.Join(dir, ".._outside.json")); err != nil {
		t.Errorf("expected sanitized file inside store dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "outside.json")); !os.IsNotExist(err) {
		t.Error("bundle escaped the store directory")
	}
}

func TestLoad_RefreshesExpiredToken(t *testing.T) {
	var refreshCalls int
	var mu sync.Mutex

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		refreshCalls++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "refreshed-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	store := newTestStore(t, tokenServer.URL)
	ctx := context.Background()

	expired := &oauth2.Token{
		AccessToken:  "stale-access",
		TokenType:    "Bearer",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(-time.Hour),
	}
	if err := store.Store(ctx, "bob", expired); err != nil {
		t.Fatalf("Store: %v", err)
	}

	loaded, err := store.Load(ctx, "bob")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.AccessToken != "refreshed-access" {
		t.Errorf("access token = %q, want refreshed form", loaded.AccessToken)
	}
	if !loaded.Expiry.After(time.Now()) {
		t.Error("refreshed token should have a later expiry")
	}
	if loaded.RefreshToken != "refresh-token" {
		t.Error("refresh token must be preserved when the endpoint omits it")
	}

	// The refreshed form must be what a subsequent load also returns,
	// without hitting the token endpoint again.
	again, err := store.Load(ctx, "bob")
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if again.AccessToken != "refreshed-access" {
		t.Errorf("second load access token = %q, want persisted refreshed form", again.AccessToken)
	}
	mu.Lock()
	defer mu.Unlock()
	if refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want 1 (idempotent after first refresh)", refreshCalls)
	}
}

func TestLoad_ExpiredWithoutRefreshToken(t *testing.T) {
	store := newTestStore(t, "https://example.com/token")
	ctx := context.Background()

	expired := &oauth2.Token{
		AccessToken: "stale-access",
		Expiry:      time.Now().Add(-time.Hour),
	}
	if err := store.Store(ctx, "carol", expired); err != nil {
		t.Fatalf("Store: %v", err)
	}

	loaded, err := store.Load(ctx, "carol")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil || loaded.AccessToken != "stale-access" {
		t.Errorf("expected the stored bundle as-is, got %+v", loaded)
	}
}

func TestConcurrentLoadAndStore_SameUser(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "refreshed-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	store := newTestStore(t, tokenServer.URL)
	ctx := context.Background()

	expired := &oauth2.Token{
		AccessToken:  "stale-access",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(-time.Hour),
	}
	if err := store.Store(ctx, "dave", expired); err != nil {
		t.Fatalf("Store: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Load(ctx, "dave")
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh := &oauth2.Token{
				AccessToken:  "stored-access",
				RefreshToken: "refresh-token",
				Expiry:       time.Now().Add(time.Hour),
			}
			_ = store.Store(ctx, "dave", fresh)
		}()
	}
	wg.Wait()

	// Whatever interleaving happened, the stored file must still be a
	// valid bundle, not a torn write.
	loaded, err := store.Load(ctx, "dave")
	if err != nil {
		t.Fatalf("Load after concurrent access: %v", err)
	}
	if loaded == nil || loaded.AccessToken == "" {
		t.Error("expected an intact bundle after concurrent load/store")
	}
}

func TestLoad_RefreshLogsSanitizedToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "refreshed-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store, err := NewFileStore(t.TempDir(), testConfig(tokenServer.URL), logger)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ctx := context.Background()
	expired := &oauth2.Token{
		AccessToken:  "stale-access",
		RefreshToken: "super-secret-refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}
	if err := store.Store(ctx, "erin", expired); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if _, err := store.Load(ctx, "erin"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	logs := buf.String()
	if strings.Contains(logs, "super-secret-refresh") {
		t.Error("raw refresh token leaked into logs")
	}
	if !strings.Contains(logs, "[token:") {
		t.Error("expected sanitized token marker in refresh log")
	}
}
