package main

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/relay/internal/blob"
	blobs3 "github.com/alfredjeanlab/relay/internal/blob/s3"
	"github.com/alfredjeanlab/relay/internal/config"
	"github.com/alfredjeanlab/relay/internal/store"
	"github.com/alfredjeanlab/relay/internal/store/postgres"
	"github.com/alfredjeanlab/relay/internal/store/sqlite"
)

// openStore opens the event store selected by the configuration.
func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		return postgres.New(cfg.DatabaseURL, cfg.Limits())
	}
	return sqlite.Open(cfg.SQLitePath, cfg.Limits())
}

// openBlobs returns the S3 blob store when a bucket is configured, and an
// in-memory store otherwise.
func openBlobs(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blob.Store, error) {
	if cfg.BlobS3Bucket == "" {
		logger.Info("shared files kept in memory (RELAY_BLOB_S3_BUCKET not set)")
		return blob.NewMemory(), nil
	}
	b, err := blobs3.New(ctx, cfg.BlobS3Bucket, cfg.BlobS3Prefix, cfg.BlobS3Region, cfg.BlobS3Endpoint)
	if err != nil {
		return nil, err
	}
	logger.Info("shared files stored in S3", "bucket", cfg.BlobS3Bucket, "prefix", cfg.BlobS3Prefix)
	return b, nil
}
