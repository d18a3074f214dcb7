// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/eventlake/config"
	"github.com/cardinalhq/eventlake/internal/archive"
	"github.com/cardinalhq/eventlake/internal/cloudstorage"
	"github.com/cardinalhq/eventlake/internal/fly"
	"github.com/cardinalhq/eventlake/internal/healthcheck"
	"github.com/cardinalhq/eventlake/internal/parser"
)

const shutdownTimeout = 2 * time.Minute

func init() {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Consume events from Kafka and archive them by partition key",
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "eventlake-archive"
			doneCtx, doneFx, err := setupTelemetry(servicename)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}

			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return archiveMain(doneCtx, cfg)
		},
	}

	rootCmd.AddCommand(cmd)
}

func archiveMain(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Kafka.Validate(); err != nil {
		return err
	}

	health := healthcheck.NewServer(cfg.Health)
	if err := health.Start(ctx); err != nil {
		return err
	}
	health.SetReadyCondition("consumer", false)

	store, err := cloudstorage.NewClient(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}

	consumer, err := fly.NewFactory(cfg.Kafka).
		CreateConsumerWithService(cfg.Kafka.Topic, config.ServiceArchive, fly.WithManualCommit())
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	archiver, err := newArchiver(cfg, store, consumer)
	if err != nil {
		_ = consumer.Close()
		return err
	}

	health.SetReadyCondition("consumer", true)
	health.SetStatus(healthcheck.StatusHealthy)

	slog.Info("Archiving events",
		slog.String("topic", cfg.Kafka.Topic),
		slog.String("consumerGroup", cfg.Kafka.GetConsumerGroup(config.ServiceArchive)),
		slog.String("provider", cfg.Storage.CloudProvider),
		slog.String("bucket", cfg.Storage.Bucket),
		slog.String("parser", cfg.Parser.Name))

	return runArchive(ctx, consumer, archiver)
}

func newArchiver(cfg *config.Config, store cloudstorage.Client, committer archive.Committer) (*archive.Archiver, error) {
	extractor, err := parser.New(cfg.Parser)
	if err != nil {
		return nil, fmt.Errorf("failed to create parser: %w", err)
	}
	dest := archive.Destination{Bucket: cfg.Storage.Bucket, Prefix: cfg.Storage.Prefix}
	archiver, err := archive.New(cfg.Archive, dest, extractor, store, archive.WithCommitter(committer))
	if err != nil {
		return nil, fmt.Errorf("failed to create archiver: %w", err)
	}
	return archiver, nil
}

// runArchive consumes until ctx is cancelled, then flushes the archiver
// and closes the consumer. The consumer stays open during the flush so the
// final offsets can be committed.
func runArchive(ctx context.Context, consumer fly.Consumer, archiver *archive.Archiver) error {
	var errs *multierror.Error

	if err := consumer.Consume(ctx, archiver.Handle); err != nil && !errors.Is(err, context.Canceled) {
		errs = multierror.Append(errs, fmt.Errorf("consume: %w", err))
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := archiver.Close(flushCtx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("flush archive: %w", err))
	}
	if err := consumer.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("close consumer: %w", err))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return err
	}
	slog.Info("Archive stopped cleanly")
	return nil
}
