// Package cmd implements the jikan-catalog CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/jikan-catalog/internal/config"
	"github.com/Sternrassler/jikan-catalog/pkg/catalog"
	"github.com/Sternrassler/jikan-catalog/pkg/client"
	"github.com/Sternrassler/jikan-catalog/pkg/logging"
)

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions carries the persistent flags and the viper instance they
// are bound to.
type rootOptions struct {
	v *viper.Viper
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:   "jikan-catalog",
		Short: "Browse and search the Jikan anime, manga and character catalog",
		Long: "jikan-catalog queries the public Jikan API (MyAnimeList data).\n" +
			"It paces requests to Jikan's published limits, retries rate limited\n" +
			"and failed requests with backoff, and can serve a caching proxy.",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (YAML)")
	pf.StringP("output", "o", "table", "output format (table, json)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("base-url", "", "Jikan API base URL")
	pf.String("user-agent", "", "User-Agent sent to the API")
	pf.String("redis", "", "Redis address for shared throttle state and the proxy cache")

	for _, name := range []string{"config", "output", "log-level", "base-url", "user-agent", "redis"} {
		cobra.CheckErr(opts.v.BindPFlag(name, pf.Lookup(name)))
	}

	opts.v.SetEnvPrefix("JIKAN_CATALOG")
	opts.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	opts.v.AutomaticEnv()

	root.AddCommand(
		searchCmd(opts),
		browseCmd(opts, catalog.RouteTop, "Top ranking by popularity"),
		browseCmd(opts, catalog.RouteSeasonal, "Anime airing this season"),
		browseCmd(opts, catalog.RouteUpcoming, "Anime announced for upcoming seasons"),
		overviewCmd(opts),
		detailsCmd(opts),
		recommendCmd(opts),
		randomCmd(opts),
		exportCmd(opts),
		serveCmd(opts),
	)

	return root
}

// app bundles what a command needs to talk to the API.
type app struct {
	cfg    *config.Config
	client *client.Client
	api    *catalog.API
	redis  *redis.Client
}

func (a *app) Close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// loadConfig reads the config file and applies flag and environment overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.v.GetString("config"))
	if err != nil {
		return nil, err
	}

	if o.v.IsSet("base-url") {
		cfg.API.BaseURL = o.v.GetString("base-url")
	}
	if o.v.IsSet("user-agent") {
		cfg.API.UserAgent = o.v.GetString("user-agent")
	}
	if o.v.IsSet("log-level") {
		cfg.Logging.Level = o.v.GetString("log-level")
	}
	if o.v.IsSet("redis") {
		cfg.Redis.Addr = o.v.GetString("redis")
		enabled := cfg.Redis.Enabled()
		cfg.Cache.Enabled = &enabled
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// newApp loads configuration, sets up logging and builds the client.
func (o *rootOptions) newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	lc := cfg.LoggingSetup()
	lc.Output = cmd.ErrOrStderr()
	logging.Setup(lc)

	a := &app{cfg: cfg}

	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(cfg.Redis.Options())
		if err := a.redis.Ping(cmd.Context()).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Debug().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	c, err := client.New(cfg.ClientConfig(a.redis))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating client: %w", err)
	}
	a.client = c
	a.api = catalog.NewAPI(c)

	return a, nil
}

func (o *rootOptions) jsonOutput() bool {
	return o.v.GetString("output") == "json"
}

func (o *rootOptions) printer(cmd *cobra.Command) *printer {
	return &printer{w: cmd.OutOrStdout(), json: o.jsonOutput()}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
