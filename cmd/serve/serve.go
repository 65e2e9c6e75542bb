// Package serve implements the command that runs the HTTP API.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/petmood/internal/api"
	"github.com/tphakala/petmood/internal/buildinfo"
	"github.com/tphakala/petmood/internal/conf"
	"github.com/tphakala/petmood/internal/datastore"
	"github.com/tphakala/petmood/internal/datastore/repository"
	"github.com/tphakala/petmood/internal/emotion"
	"github.com/tphakala/petmood/internal/httpclient"
	"github.com/tphakala/petmood/internal/logger"
	"github.com/tphakala/petmood/internal/mqtt"
	"github.com/tphakala/petmood/internal/observability"
	"github.com/tphakala/petmood/internal/privacy"
	"github.com/tphakala/petmood/internal/telemetry"
)

const sentryFlushTimeout = 2 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the emotion detection API",
		Long:  "Load the cat and dog models and serve the detection, history and health endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings, build)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Host, "host", viper.GetString("webserver.host"), "Address to listen on")
	cmd.Flags().IntVarP(&settings.WebServer.Port, "port", "p", viper.GetInt("webserver.port"), "Port to listen on")

	if err := viper.BindPFlag("webserver.host", cmd.Flags().Lookup("host")); err != nil {
		return fmt.Errorf("error binding host flag: %w", err)
	}
	if err := viper.BindPFlag("webserver.port", cmd.Flags().Lookup("port")); err != nil {
		return fmt.Errorf("error binding port flag: %w", err)
	}
	return nil
}

func run(parent context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() {
		_ = central.Close()
	}()
	log := central.Base()
	mainLog := central.Module("main")

	mainLog.Info("starting petmood",
		logger.String("version", build.Version()),
		logger.String("build_date", build.BuildDate()),
		logger.String("instance_id", build.InstanceID()))

	if err := telemetry.InitSentry(settings, build.Version(), central.Module("telemetry")); err != nil {
		mainLog.Warn("error telemetry disabled", logger.Error(err))
	}
	defer telemetry.Flush(sentryFlushTimeout)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	db, err := datastore.Open(&settings.Database, datastore.Options{
		Logger:        central.Module("datastore"),
		SlowThreshold: settings.Database.SlowThreshold,
		Metrics:       metrics.Datastore,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			mainLog.Warn("failed to close database", logger.Error(err))
		}
	}()

	client := httpclient.New(&httpclient.Config{
		DefaultTimeout: settings.Emotion.Inference.FetchTimeout,
		UserAgent:      "petmood/" + build.Version(),
	})
	defer client.Close()

	registry := emotion.LoadRegistry(ctx, settings, client,
		emotion.WithMetrics(metrics.Emotion),
		emotion.WithLogger(central.Module("emotion")))
	defer func() {
		if err := registry.Close(); err != nil {
			mainLog.Warn("failed to release models", logger.Error(err))
		}
	}()

	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	if settings.MQTT.Enabled {
		cfg := mqtt.ConfigFromSettings(settings)
		mqttClient := mqtt.NewClient(cfg, metrics.MQTT, log)
		// Paho reconnects on its own once the first connection succeeds; a
		// broker that is down at startup only disables publishing.
		if err := mqttClient.Connect(ctx); err != nil {
			mainLog.Warn("mqtt broker unavailable, detection events will not be published",
				logger.Error(privacy.ScrubError(err)))
		}
		defer mqttClient.Disconnect()
		publisher = mqtt.NewEventPublisher(mqttClient, cfg.Topic, log)
	}

	history := repository.NewHistoryRepository(db.DB(), metrics.Datastore)

	serverOpts := []api.ServerOption{
		api.WithServerLogger(log),
		api.WithAccessLogger(central.Module("access")),
		api.WithControllerOptions(
			api.WithRegistry(registry),
			api.WithDatabase(db),
			api.WithPublisher(publisher),
			api.WithBuildInfo(build),
		),
	}
	if settings.Metrics.Enabled && settings.Metrics.Listen == "" {
		serverOpts = append(serverOpts, api.WithPrometheus(metrics))
	}

	srv, err := api.New(settings, history, serverOpts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if settings.Metrics.Enabled && settings.Metrics.Listen != "" {
		endpoint := observability.NewEndpoint(settings.Metrics.Listen, metrics, central.Module("metrics"))
		g.Go(func() error {
			return endpoint.Run(gctx)
		})
	}

	err = g.Wait()
	mainLog.Info("petmood stopped")
	_ = central.Flush()
	return err
}
