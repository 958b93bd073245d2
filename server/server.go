// Package server exposes the HTTP API: the chat-bot command endpoint, health,
// metrics, the Twitch re-authorization flow, and the clip history. It injects
// correlation IDs into request contexts for consistent logging.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/clip-relay/config"
	"github.com/onnwee/clip-relay/telemetry"
)

// NewMux returns the HTTP handler with all routes.
// The provided context is used for the rate limiter cleanup goroutine lifecycle.
func NewMux(ctx context.Context, cfg *config.Config, deps Deps) http.Handler {
	authCfg := loadAuthConfig(cfg)
	limiter := newIPRateLimiter(ctx, loadRateLimiterConfig(cfg))
	handlers := NewHandlers(cfg, deps)

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	// Chat-bot command relay
	mux.Handle("/twitch-command", rateLimitMiddleware(http.HandlerFunc(handlers.HandleTwitchCommand), limiter))

	// Health and readiness endpoints
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)

	// Re-authorization: start is admin-only, Twitch redirects back to the callback
	mux.Handle("/auth/twitch/start", adminAuth(http.HandlerFunc(handlers.HandleTwitchOAuthStart), authCfg))
	mux.HandleFunc("/auth/twitch/callback", handlers.HandleTwitchOAuthCallback)

	mux.Handle("/clips", adminAuth(http.HandlerFunc(handlers.HandleClipsList), authCfg))

	// Wrap with correlation ID injector and tracing middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
			telemetry.HTTPURLAttr(redactedURL(r)),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		// Capture status code via custom ResponseWriter
		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		mux.ServeHTTP(wrappedWriter, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
		if wrappedWriter.statusCode >= 400 {
			code, msg := telemetry.ErrorStatus(fmt.Sprintf("HTTP %d", wrappedWriter.statusCode))
			span.SetStatus(code, msg)
		}
	})
}

// redactedURL drops the query string, which carries OAuth codes on the callback.
func redactedURL(r *http.Request) string {
	u := *r.URL
	u.RawQuery = ""
	return u.String()
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, cfg *config.Config, deps Deps) error {
	// the clip workflow may spend two upstream timeouts plus a refresh and a notification
	write := 3*cfg.UpstreamTimeout + cfg.NotifyTimeout + 5*time.Second
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      NewMux(ctx, cfg, deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: write,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), write)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
