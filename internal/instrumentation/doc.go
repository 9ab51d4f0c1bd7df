// Package instrumentation provides OpenTelemetry instrumentation for the
// calagent backend.
//
// # Metrics
//
// Server/HTTP metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Chat metrics:
//   - chat_turns_total: Counter of chat turns by outcome
//   - chat_turn_duration_seconds: Histogram of end-to-end chat turn durations
//   - completion_requests_total: Counter of completion service calls by status
//   - completion_request_duration_seconds: Histogram of completion call durations
//
// Calendar tool metrics:
//   - calendar_tool_invocations_total: Counter of tool dispatches by tool name and status
//   - calendar_tool_duration_seconds: Histogram of tool dispatch durations
//
// OAuth metrics:
//   - oauth_auth_total: Counter of authorization-code flow completions by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// # Tracing
//
// Spans are created for chat turns (chat.turn), tool dispatches
// (tool.<name>), and completion calls (completion.generate).
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: calagent)
package instrumentation
