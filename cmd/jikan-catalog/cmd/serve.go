package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/jikan-catalog/internal/proxy"
	"github.com/Sternrassler/jikan-catalog/pkg/cache"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run a caching proxy in front of the Jikan API",
		Long: "Serve the Jikan API under /v4 with the client's pacing and retries.\n" +
			"With Redis configured, successful responses are cached.\n" +
			"Also exposes /health, /ready and /metrics.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr()
			}

			var cacheManager *cache.Manager
			if a.cfg.CacheEnabled() && a.redis != nil {
				cacheManager = cache.NewManager(a.redis, a.cfg.Cache.TTL)
			}

			srv, err := proxy.New(proxy.Options{
				Fetcher:        a.client,
				Cache:          cacheManager,
				RequestTimeout: a.cfg.Server.RequestTimeout,
				Addr:           addr,
				ReadTimeout:    a.cfg.Server.ReadTimeout,
				WriteTimeout:   a.cfg.Server.WriteTimeout,
			})
			if err != nil {
				return fmt.Errorf("creating proxy: %w", err)
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info().
				Str("upstream", a.client.BaseURL()).
				Bool("cache", cacheManager != nil).
				Msg("Proxy configured")

			return srv.ListenAndServe(ctx)
		},
	}

	c.Flags().StringVar(&addr, "addr", "", "listen address (default from config server.host:server.port)")
	return c
}
