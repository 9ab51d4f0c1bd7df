package instrumentation

import (
	"context"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, ctx context.Context) *Provider {
	t.Helper()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	return provider
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx).Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "POST", "/chat", 200, 100*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "GET", "/auth/google", 302, 5*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "POST", "/chat", 500, 50*time.Millisecond)
}

func TestMetrics_RecordChatTurn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx).Metrics()

	// Should not panic
	metrics.RecordChatTurn(ctx, OutcomeReply, "user:abc123", 2*time.Second)
	metrics.RecordChatTurn(ctx, OutcomeAuthPrompt, "", time.Second)
	metrics.RecordChatTurn(ctx, OutcomeToolDispatched, "user:abc123", 4*time.Second)
}

func TestMetrics_RecordCompletion(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx).Metrics()

	// Should not panic
	metrics.RecordCompletion(ctx, StatusSuccess, 1500*time.Millisecond)
	metrics.RecordCompletion(ctx, StatusError, 300*time.Millisecond)
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx).Metrics()

	// Should not panic
	metrics.RecordToolInvocation(ctx, "list_events", StatusSuccess, 200*time.Millisecond)
	metrics.RecordToolInvocation(ctx, "create_event", StatusError, 500*time.Millisecond)
}

func TestMetrics_RecordOAuth(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx).Metrics()

	// Should not panic
	metrics.RecordOAuthAuth(ctx, OAuthResultSuccess)
	metrics.RecordOAuthAuth(ctx, OAuthResultFailure)
	metrics.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)
	metrics.RecordOAuthTokenRefresh(ctx, OAuthResultFailure)
}

func TestMetrics_ZeroValueIsNoOp(t *testing.T) {
	ctx := context.Background()

	var metrics Metrics

	// All recording methods must be safe on an uninitialized recorder
	metrics.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
	metrics.RecordChatTurn(ctx, OutcomeReply, "", time.Second)
	metrics.RecordCompletion(ctx, StatusSuccess, time.Second)
	metrics.RecordToolInvocation(ctx, "list_events", StatusSuccess, time.Millisecond)
	metrics.RecordOAuthAuth(ctx, OAuthResultSuccess)
	metrics.RecordOAuthTokenRefresh(ctx, OAuthResultFailure)
}

func TestMetrics_NilIsNoOp(t *testing.T) {
	ctx := context.Background()

	var metrics *Metrics

	// A nil recorder must also be safe
	metrics.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
	metrics.RecordChatTurn(ctx, OutcomeReply, "", time.Second)
	metrics.RecordCompletion(ctx, StatusSuccess, time.Second)
	metrics.RecordToolInvocation(ctx, "list_events", StatusSuccess, time.Millisecond)
	metrics.RecordOAuthAuth(ctx, OAuthResultSuccess)
	metrics.RecordOAuthTokenRefresh(ctx, OAuthResultFailure)
}
