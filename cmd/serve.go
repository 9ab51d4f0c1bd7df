package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vrlab/calagent/internal/authflow"
	"github.com/vrlab/calagent/internal/chat"
	"github.com/vrlab/calagent/internal/completion"
	"github.com/vrlab/calagent/internal/config"
	"github.com/vrlab/calagent/internal/credentials"
	"github.com/vrlab/calagent/internal/google"
	"github.com/vrlab/calagent/internal/instrumentation"
	"github.com/vrlab/calagent/internal/logging"
	"github.com/vrlab/calagent/internal/server"
	"github.com/vrlab/calagent/internal/tools"
)

func newServeCmd() *cobra.Command {
	var (
		httpAddr    string
		metricsAddr string
		debugMode   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the calagent API server",
		Long: `Start the HTTP API server exposing the chat endpoint and the Google
OAuth authorization flow, plus a dedicated Prometheus metrics server.

Configuration is read from the environment; flags override the listener
addresses. Required settings: GEMINI_API_KEY, GOOGLE_CLIENT_ID,
GOOGLE_CLIENT_SECRET, GOOGLE_OAUTH_REDIRECT_URL.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}
			if debugMode {
				cfg.Debug = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "API server address (overrides CALAGENT_HTTP_ADDR)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics server address (overrides CALAGENT_METRICS_ADDR)")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}

func runServe(cfg *config.Config) error {
	logger := logging.Setup(cfg.Debug)

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			logger.Info("metrics server started", slog.String("addr", metricsServer.Addr()))
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	// Wire the OAuth flow and credential store
	oauthConf := google.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)

	store, err := credentials.NewFileStore(cfg.CredentialsDir, oauthConf, logger)
	if err != nil {
		return fmt.Errorf("failed to create credential store: %w", err)
	}
	store.SetMetrics(provider.Metrics())

	states := authflow.NewStateStore(cfg.StateTTL, logger)
	defer states.Stop()

	flow := authflow.NewManager(oauthConf, states, store, logger)

	// Wire the chat pipeline
	completer, err := completion.NewGeminiClient(shutdownCtx, cfg.GeminiAPIKey,
		completion.WithModel(cfg.CompletionModel),
		completion.WithTimeout(cfg.CompletionTimeout),
		completion.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}

	dispatcher := tools.NewDispatcher(oauthConf, logger)
	orchestrator := chat.NewOrchestrator(store, completer, dispatcher, logger, provider.Metrics())

	apiServer := server.New(server.Config{Addr: cfg.HTTPAddr}, flow, orchestrator, logger, provider.Metrics())

	apiErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiErr <- err
		}
		close(apiErr)
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-apiErr:
		if err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
	}

	// Drain the API server first, then the metrics server
	drainCtx, drainCancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer drainCancel()

	if err := apiServer.Shutdown(drainCtx); err != nil {
		logger.Error("error during API server shutdown", logging.Err(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(drainCtx); err != nil {
			logger.Error("error during metrics server shutdown", logging.Err(err))
		}
	}

	return nil
}
