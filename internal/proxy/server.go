// Package proxy serves the Jikan API through the fetch client, with an
// optional Redis response cache in front of it.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/jikan-catalog/pkg/cache"
	"github.com/Sternrassler/jikan-catalog/pkg/client"
	"github.com/Sternrassler/jikan-catalog/pkg/logging"
	"github.com/Sternrassler/jikan-catalog/pkg/metrics"
)

// PathPrefix is the mount point of the API passthrough.
const PathPrefix = "/v4"

var proxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "jikan_proxy_requests_total",
	Help: "Proxy requests by endpoint, response status and cache result",
}, []string{"endpoint", "status", "cache"})

// Options configures a Server.
type Options struct {
	// Fetcher performs upstream requests. Required.
	Fetcher client.Fetcher

	// Cache stores successful responses. Optional.
	Cache *cache.Manager

	// RequestTimeout bounds one upstream fetch, retries included.
	RequestTimeout time.Duration

	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Logger *zerolog.Logger
}

// Server is the caching API proxy.
type Server struct {
	fetcher        client.Fetcher
	cache          *cache.Manager
	requestTimeout time.Duration
	logger         zerolog.Logger
	group          singleflight.Group
	httpServer     *http.Server
}

// New creates a server. It does not start listening.
func New(opts Options) (*Server, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}

	logger := logging.NewLogger("proxy")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	s := &Server{
		fetcher:        opts.Fetcher,
		cache:          opts.Cache,
		requestTimeout: timeout,
		logger:         logger,
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
	}
	return s, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc(PathPrefix+"/", s.handleAPI)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("addr", s.httpServer.Addr).
			Bool("cache", s.cache != nil).
			Msg("Starting proxy server")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info().Msg("Shutting down proxy server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.cache.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "redis unavailable", "")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}

// fetchResult is shared between coalesced callers.
type fetchResult struct {
	entry *cache.Entry
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	endpoint := strings.TrimPrefix(r.URL.Path, PathPrefix)
	if strings.Trim(endpoint, "/") == "" {
		writeError(w, http.StatusNotFound, "endpoint required", "")
		return
	}

	label := metrics.EndpointLabel(endpoint)
	// The key is built from the parameters actually forwarded upstream.
	params := paramsFrom(r.URL.Query())
	key := cache.NewKey(endpoint, params.Encode())

	if s.cache != nil {
		entry, err := s.cache.Get(r.Context(), key)
		switch {
		case err == nil:
			proxyRequests.WithLabelValues(label, strconv.Itoa(entry.StatusCode), cache.StatusHit).Inc()
			s.writeEntry(w, entry, cache.StatusHit)
			return
		case !errors.Is(err, cache.ErrCacheMiss):
			// A broken cache must not take the API down with it.
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed")
		}
	}

	// Concurrent misses for the same key share one upstream fetch.
	v, err, shared := s.group.Do(key.String(), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.requestTimeout)
		defer cancel()

		body, err := s.fetcher.Get(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}

		ttl := time.Duration(0)
		if s.cache != nil {
			ttl = s.cache.TTL()
		}
		entry := cache.NewEntry(body, http.StatusOK, "application/json", ttl)

		if s.cache != nil {
			if err := s.cache.Set(ctx, key, entry); err != nil {
				s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
			}
		}
		return fetchResult{entry: entry}, nil
	})

	if err != nil {
		status, msg := statusFor(err)
		proxyRequests.WithLabelValues(label, strconv.Itoa(status), cache.StatusMiss).Inc()
		s.logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Int("status", status).
			Bool("shared", shared).
			Msg("Upstream fetch failed")
		writeError(w, status, msg, string(client.ClassOf(err)))
		return
	}

	entry := v.(fetchResult).entry
	proxyRequests.WithLabelValues(label, strconv.Itoa(entry.StatusCode), cache.StatusMiss).Inc()
	s.writeEntry(w, entry, cache.StatusMiss)
}

func (s *Server) writeEntry(w http.ResponseWriter, entry *cache.Entry, status string) {
	if err := cache.WriteEntry(w, entry, status); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write response")
	}
}

// statusFor maps a terminal fetch error to the proxy's response status.
func statusFor(err error) (int, string) {
	switch client.ClassOf(err) {
	case client.ErrorClassNotFound:
		return http.StatusNotFound, "resource not found"
	case client.ErrorClassClient:
		return http.StatusBadRequest, "upstream rejected the request"
	}
	if errors.Is(err, client.ErrRetryExhausted) && client.ClassOf(err) == client.ErrorClassRateLimit {
		return http.StatusBadGateway, "upstream rate limit exceeded"
	}
	if errors.Is(err, client.ErrContextCancelled) {
		return http.StatusGatewayTimeout, "upstream request timed out"
	}
	return http.StatusBadGateway, "upstream request failed"
}

// paramsFrom keeps the first value of each query parameter.
func paramsFrom(q map[string][]string) client.Params {
	params := make(client.Params, len(q))
	for k, v := range q {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

type errorBody struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, class string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, Class: class})
}
