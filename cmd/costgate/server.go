package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/editorial-labs/costgate"
	"github.com/editorial-labs/costgate/internal/circuitbreaker"
	"github.com/editorial-labs/costgate/internal/logging"
	"github.com/editorial-labs/costgate/middleware"
	"github.com/editorial-labs/costgate/ratelimit"
	"github.com/editorial-labs/costgate/suggest"
)

func runServe(ctx context.Context, cfg costgate.Config, listenAddr, providerName, model string) error {
	layer, err := costgate.New(cfg)
	if err != nil {
		return err
	}
	defer layer.Close()

	provider, err := buildProvider(ctx, providerName)
	if err != nil {
		return err
	}

	usageWriter, closeUsage, err := buildUsageWriter(cfg)
	if err != nil {
		return err
	}
	defer closeUsage()

	svc, err := suggest.NewService(layer, provider, model, suggest.WithUsageLog(usageWriter))
	if err != nil {
		return err
	}

	// The middleware keeps its own limiter: recording its coarse per-IP
	// window into layer.RateLimiter() would double-count every request
	// against the service's per-client budget.
	httpLimiter, err := ratelimit.NewSlidingWindow(ratelimit.Config{
		GCInterval: cfg.CleanupInterval(),
		Enabled:    cfg.Enabled,
	})
	if err != nil {
		return err
	}
	defer httpLimiter.Close()

	r := newRouter(layer, svc, httpLimiter, cfg)

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logger.Info("costgate listening", "addr", listenAddr, "provider", providerName, "model", model)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-stop:
		logging.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func newRouter(layer *costgate.Layer, svc *suggest.Service, httpLimiter *ratelimit.SlidingWindow, cfg costgate.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logging.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/suggest", func(r chi.Router) {
		// Coarse per-IP abuse guard on the whole suggestion surface; the
		// service enforces the real per-client budget underneath.
		r.Use(middleware.RateLimit(httpLimiter, 4*maxPerWindow(cfg), cfg.Window()))
		r.Post("/titles", suggestHandler(svc, suggest.EndpointTitles))
		r.Post("/hashtags", suggestHandler(svc, suggest.EndpointHashtags))
		r.Post("/seo", suggestHandler(svc, suggest.EndpointSEO))
		r.Post("/eyecatch", suggestHandler(svc, suggest.EndpointEyecatch))
	})

	r.Get("/v1/cache/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, layer.Cache().Stats())
	})

	return r
}

// maxPerWindow keeps the middleware's coarse limit meaningful when the
// configured per-client budget is "always limited" (<= 0).
func maxPerWindow(cfg costgate.Config) int {
	if cfg.MaxRequestsPerWindow <= 0 {
		return 0
	}
	return cfg.MaxRequestsPerWindow
}

type suggestRequest struct {
	Content string `json:"content"`
	Count   int    `json:"count,omitempty"`
}

func suggestHandler(svc *suggest.Service, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req suggestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		clientID := middleware.ClientIP(r)
		ctx := r.Context()

		var res *suggest.Result
		var err error
		switch endpoint {
		case suggest.EndpointTitles:
			res, err = svc.SuggestTitles(ctx, clientID, req.Content, req.Count)
		case suggest.EndpointHashtags:
			res, err = svc.SuggestHashtags(ctx, clientID, req.Content, req.Count)
		case suggest.EndpointSEO:
			res, err = svc.AnalyzeSEO(ctx, clientID, req.Content)
		case suggest.EndpointEyecatch:
			res, err = svc.SuggestImagePrompt(ctx, clientID, req.Content)
		}

		switch {
		case errors.Is(err, suggest.ErrRateLimited):
			w.Header().Set("Retry-After", strconv.Itoa(res.RateLimit.ResetInSeconds()))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":            "rate limit exceeded",
				"retry_after_secs": res.RateLimit.ResetInSeconds(),
			})
		case errors.Is(err, suggest.ErrEmptyContent):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		case errors.Is(err, circuitbreaker.ErrCircuitOpen):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "provider temporarily unavailable"})
		case err != nil:
			logging.FromContext(ctx).Error("suggestion failed", "endpoint", endpoint, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "suggestion failed"})
		default:
			writeJSON(w, http.StatusOK, res)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
