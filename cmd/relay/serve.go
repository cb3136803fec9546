package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	blobs3 "github.com/alfredjeanlab/relay/internal/blob/s3"
	"github.com/alfredjeanlab/relay/internal/config"
	"github.com/alfredjeanlab/relay/internal/events"
	"github.com/alfredjeanlab/relay/internal/presence"
	"github.com/alfredjeanlab/relay/internal/server"
	"github.com/alfredjeanlab/relay/internal/store"
	relaysync "github.com/alfredjeanlab/relay/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the relay",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		// Load configuration.
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		// Open the event store.
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		if cfg.DatabaseURL != "" {
			logger.Info("event store: postgres")
		} else {
			logger.Info("event store: sqlite", "path", cfg.SQLitePath)
		}

		blobs, err := openBlobs(context.Background(), cfg, logger)
		if err != nil {
			st.Close()
			return err
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (RELAY_NATS_URL not set)")
		}

		if cfg.OwnerSet().Cardinality() == 0 {
			logger.Warn("no owners configured; the relay is read-only")
		}

		relay := server.NewRelayServer(st, blobs, publisher, server.Options{
			Owners:          cfg.OwnerSet(),
			MaxInFlight:     cfg.MaxInFlight,
			ChallengeLength: cfg.ChallengeLength,
			AllowedOrigins:  cfg.OriginSet(),
			MaxMessageBytes: cfg.MaxMessageBytes,
		}, logger)

		if cfg.IdleTimeout > 0 {
			relay.Presence.StartReaper(&presence.ReaperConfig{
				IdleTimeout: cfg.IdleTimeout,
				OnIdle: func(id, remoteAddr string) {
					logger.Info("closed idle connection", "conn", id, "remote", remoteAddr)
				},
			})
		}

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           relay.NewHTTPHandler(cfg.AdminToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("relay listening", "addr", cfg.ListenAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start the admin gRPC listener.
		var grpcServer *grpc.Server
		var healthServer *health.Server
		if cfg.AdminGRPCAddr != "" {
			lis, err := net.Listen("tcp", cfg.AdminGRPCAddr)
			if err != nil {
				shutdownHTTP(logger, httpServer)
				relay.Close()
				publisher.Close()
				st.Close()
				return err
			}
			grpcServer, healthServer = server.NewGRPCServer(logger)
			go func() {
				logger.Info("admin gRPC server listening", "addr", cfg.AdminGRPCAddr)
				if err := grpcServer.Serve(lis); err != nil {
					logger.Error("gRPC server error", "err", err)
				}
			}()
		}

		scheduler := startBackups(cfg, st, logger)

		logger.Info("relay started",
			"listen_addr", cfg.ListenAddr,
			"admin_grpc_addr", cfg.AdminGRPCAddr,
			"owners", cfg.OwnerSet().Cardinality(),
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if healthServer != nil {
			healthServer.Shutdown()
		}

		shutdownHTTP(logger, httpServer)
		relay.Close()
		relay.Presence.Stop()
		logger.Info("relay sessions closed")

		if scheduler != nil {
			// One last backup after writes have stopped.
			scheduler.Stop()
			if err := scheduler.SyncOnce(context.Background()); err != nil {
				logger.Error("final backup failed", "err", err)
			}
			logger.Info("backup scheduler stopped")
		}

		if grpcServer != nil {
			grpcServer.GracefulStop()
			logger.Info("gRPC server stopped")
		}

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

func shutdownHTTP(logger *slog.Logger, srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}
	logger.Info("HTTP server stopped")
}

// startBackups starts the backup scheduler when an interval and at least one
// destination are configured.
func startBackups(cfg *config.Config, st store.Store, logger *slog.Logger) *relaysync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []relaysync.Destination

	if cfg.SyncS3Bucket != "" {
		bucket, err := blobs3.New(context.Background(), cfg.SyncS3Bucket, "", cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 backup destination", "err", err)
		} else {
			dests = append(dests, relaysync.NewBlobDestination(bucket, cfg.SyncS3Key))
			logger.Info("backup S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}

	if cfg.SyncFile != "" {
		dests = append(dests, relaysync.NewFileDestination(cfg.SyncFile))
		logger.Info("backup file destination enabled", "path", cfg.SyncFile)
	}

	if len(dests) == 0 {
		return nil
	}
	scheduler := relaysync.NewScheduler(st, dests, cfg.SyncInterval, logger)
	scheduler.Start()
	logger.Info("backup scheduler started", "interval", cfg.SyncInterval)
	return scheduler
}
