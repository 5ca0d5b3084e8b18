package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/glimte/streamgen"
	"github.com/glimte/streamgen/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	cfg := config.Default()
	if err := newRootCmd(&cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var streams string

	rootCmd := &cobra.Command{
		Use:   "streamgen",
		Short: "Synthetic load generator for RabbitMQ streams",
		Long: `streamgen provisions RabbitMQ streams and publishes uniquely identified,
timestamped messages to them under a uniform, weighted or fixed selection policy.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Flags win over the environment, which wins over defaults.
			fromFlags := *cfg
			*cfg = config.Default()
			if err := config.FromEnv(cfg); err != nil {
				return err
			}
			applyFlags(cmd, cfg, fromFlags)
			if cmd.Flags().Changed("streams") {
				if err := cfg.SetStreams(streams); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return setupLogger(*cfg)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.Broker.Host, "host", cfg.Broker.Host, "Broker host (AMQP_HOST)")
	flags.IntVar(&cfg.Broker.Port, "port", cfg.Broker.Port, "Broker port (AMQP_PORT)")
	flags.StringVar(&cfg.Broker.Username, "username", cfg.Broker.Username, "Broker user (AMQP_USERNAME)")
	flags.StringVar(&cfg.Broker.VHost, "vhost", cfg.Broker.VHost, "Broker virtual host (AMQP_VHOST)")
	flags.IntVar(&cfg.Broker.PoolSize, "pool-size", cfg.Broker.PoolSize, "Maximum pooled channels (AMQP_POOL_SIZE)")
	flags.BoolVar(&cfg.Broker.Confirms, "confirms", cfg.Broker.Confirms, "Wait for publisher confirms (AMQP_CONFIRMS)")
	flags.StringVarP(&streams, "streams", "s", "demo", "Comma-separated name[:weight] list (AMQP_QUEUE_NAMES)")
	flags.StringVar(&cfg.Selection, "selection", cfg.Selection, "auto, fixed, uniform or weighted (AMQP_SELECTION)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (LOG_LEVEL)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json (LOG_FORMAT)")

	rootCmd.AddCommand(
		newProvisionCmd(cfg),
		newRunCmd(cfg),
		newServeCmd(cfg),
	)

	return rootCmd
}

func newProvisionCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Delete and redeclare every configured stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			client, err := streamgen.Dial(ctx, *cfg, streamgen.WithLogger(slog.Default()))
			if err != nil {
				return err
			}
			defer client.Close()

			return client.Provision(ctx)
		},
	}
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	var attempts int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Provision streams and publish until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			client, err := streamgen.Dial(ctx, *cfg, streamgen.WithLogger(slog.Default()))
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Provision(ctx); err != nil {
				return err
			}

			stats, err := client.Run(ctx, attempts)
			slog.Info("run finished", "attempts", stats.Attempts, "published", stats.Published, "failed", stats.Failed)
			return err
		},
	}

	addPublishFlags(cmd, cfg)
	cmd.Flags().IntVarP(&attempts, "attempts", "n", 0, "Stop after this many attempts (0 runs until interrupted)")
	return cmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Provision streams, publish continuously and serve the trigger endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			client, err := streamgen.Dial(ctx, *cfg, streamgen.WithLogger(slog.Default()))
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Provision(ctx); err != nil {
				return err
			}

			return client.Serve(ctx)
		},
	}

	addPublishFlags(cmd, cfg)
	cmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "Trigger server address (HTTP_ADDR)")
	cmd.Flags().IntVar(&cfg.Publish.BurstSize, "burst-size", cfg.Publish.BurstSize, "Messages per triggered burst (BURST_SIZE)")
	return cmd
}

func addPublishFlags(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().DurationVar(&cfg.Publish.Interval, "interval", cfg.Publish.Interval, "Pause between attempt groups, 0 disables pacing (PUBLISH_INTERVAL)")
	cmd.Flags().IntVar(&cfg.Publish.Every, "every", cfg.Publish.Every, "Attempts per pause (PUBLISH_EVERY)")
	cmd.Flags().IntVar(&cfg.Publish.PayloadWords, "payload-words", cfg.Publish.PayloadWords, "Lorem ipsum words per message (PAYLOAD_WORDS)")
}

// applyFlags copies every explicitly set flag from fromFlags onto cfg
func applyFlags(cmd *cobra.Command, cfg *config.Config, fromFlags config.Config) {
	changed := cmd.Flags().Changed
	set := map[string]func(){
		"host":          func() { cfg.Broker.Host = fromFlags.Broker.Host },
		"port":          func() { cfg.Broker.Port = fromFlags.Broker.Port },
		"username":      func() { cfg.Broker.Username = fromFlags.Broker.Username },
		"vhost":         func() { cfg.Broker.VHost = fromFlags.Broker.VHost },
		"pool-size":     func() { cfg.Broker.PoolSize = fromFlags.Broker.PoolSize },
		"confirms":      func() { cfg.Broker.Confirms = fromFlags.Broker.Confirms },
		"selection":     func() { cfg.Selection = fromFlags.Selection },
		"log-level":     func() { cfg.LogLevel = fromFlags.LogLevel },
		"log-format":    func() { cfg.LogFormat = fromFlags.LogFormat },
		"interval":      func() { cfg.Publish.Interval = fromFlags.Publish.Interval },
		"every":         func() { cfg.Publish.Every = fromFlags.Publish.Every },
		"payload-words": func() { cfg.Publish.PayloadWords = fromFlags.Publish.PayloadWords },
		"burst-size":    func() { cfg.Publish.BurstSize = fromFlags.Publish.BurstSize },
		"http-addr":     func() { cfg.HTTPAddr = fromFlags.HTTPAddr },
	}
	for name, apply := range set {
		if changed(name) {
			apply()
		}
	}
}

func setupLogger(cfg config.Config) error {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
