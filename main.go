package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/feedscope/feedscope/config"
	"github.com/feedscope/feedscope/gate"
	"github.com/feedscope/feedscope/intercept"
	"github.com/feedscope/feedscope/metrics"
	"github.com/feedscope/feedscope/model"
	"github.com/feedscope/feedscope/relay"
	"github.com/feedscope/feedscope/remote"
	"github.com/feedscope/feedscope/service"
	"github.com/feedscope/feedscope/store"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	rootCmd := &cobra.Command{
		Use:   "feedscope",
		Short: "Intercepts timeline responses and normalizes them into archive records",
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(reprocessCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// version is stamped at build time via -ldflags.
var version = "dev"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("feedscope " + version)
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	return cfg, nil
}

// buildService assembles the store, the remote and the gate into a service.
// The returned cleanup closes both stores.
func buildService(ctx context.Context, cfg *config.Config) (*service.Service, func(), error) {
	local, err := store.New(store.Config{Backend: cfg.StoreBackend, Path: cfg.StorePath})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}

	var rs remote.Store
	if cfg.RemoteDSN != "" {
		rs, err = remote.NewPostgres(ctx, cfg.RemoteDSN)
		if err != nil {
			local.Close()
			return nil, nil, fmt.Errorf("failed to connect to remote store: %w", err)
		}
	} else {
		log.Warn().Msg("No remote DSN configured, running with a no-op remote")
		rs = remote.NewNull()
	}

	g := gate.New(local, rs, cfg.FreshnessWindow)
	svc := service.New(local, rs, g, service.Options{
		SweepInterval:   cfg.SweepInterval,
		RetentionAge:    cfg.RetentionAge,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	})

	cleanup := func() {
		rs.Close()
		if err := local.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close local store")
		}
	}
	return svc, cleanup, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the background service: relay handling, upload, retention sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, cleanup, err := buildService(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			eg, ctx := errgroup.WithContext(ctx)

			if cfg.MetricsAddr != "" {
				eg.Go(func() error {
					return metrics.StartServer(ctx, cfg.MetricsAddr)
				})
			}

			if cfg.Dapr.Enabled {
				ps, err := relay.NewPubSub(cfg.Dapr.PubSubComponent, cfg.Dapr.AppPort, svc)
				if err != nil {
					return fmt.Errorf("failed to start pubsub relay: %w", err)
				}
				defer ps.Close()
				eg.Go(func() error {
					return ps.Serve(ctx)
				})
			}

			eg.Go(func() error {
				return svc.Run(ctx)
			})

			log.Info().Msg("Service started")
			err = eg.Wait()
			if err != nil && err != context.Canceled {
				return err
			}
			log.Info().Msg("Service stopped")
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one retention sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, cleanup, err := buildService(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := svc.SweepOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d expired records\n", deleted)
			return nil
		},
	}
}

// replayCmd feeds previously captured exchanges (a JSON array of
// url/request_body/response_body objects) through the interception front
// end, either into an in-process service or onto the configured pub/sub
// topic.
func replayCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Run captured exchanges through the interception pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read exchange file: %w", err)
			}
			var exchanges []model.Exchange
			if err := json.Unmarshal(raw, &exchanges); err != nil {
				return fmt.Errorf("failed to parse exchange file: %w", err)
			}

			ctx := context.Background()

			var channel relay.Channel
			if cfg.Dapr.Enabled {
				ps, err := relay.NewPubSub(cfg.Dapr.PubSubComponent, cfg.Dapr.AppPort, nil)
				if err != nil {
					return fmt.Errorf("failed to create pubsub channel: %w", err)
				}
				channel = relay.NewPublishChannel(ps)
			} else {
				svc, cleanup, err := buildService(ctx, cfg)
				if err != nil {
					return err
				}
				defer cleanup()
				channel = relay.NewDirect(svc)
			}
			defer channel.Close()

			interceptor := intercept.New(channel, userID)
			relayed := 0
			for _, ex := range exchanges {
				relayed += interceptor.HandleExchange(ctx, ex)
			}
			fmt.Printf("Relayed %d records from %d exchanges\n", relayed, len(exchanges))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to attribute captured records to")
	return cmd
}

func reprocessCmd() *cobra.Command {
	var recordType string
	var reason string

	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Retry uploading locally retained records that were never confirmed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, cleanup, err := buildService(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := svc.Reprocess(ctx, store.Filters{Type: recordType, Reason: reason})
			if err != nil {
				return err
			}
			fmt.Printf("Reprocessed %d records: %d succeeded, %d failed\n",
				report.Processed, report.Succeeded, report.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&recordType, "type", "", "only reprocess records of this type")
	cmd.Flags().StringVar(&reason, "reason", "", "only reprocess records with this failure reason")
	return cmd
}
