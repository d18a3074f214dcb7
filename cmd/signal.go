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
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// handleSignals returns a context cancelled by the first SIGINT or SIGTERM,
// which starts the archiver's final flush. A second signal exits at once
// and leaves the spool behind; its offsets were never committed.
func handleSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return watchSignals(ctx, os.Exit, os.Interrupt, syscall.SIGTERM)
}

func watchSignals(parent context.Context, exit func(int), sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, sigs...)

	stopped := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-ch:
			slog.Info("Shutdown requested, flushing spool files",
				slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
			return
		case <-stopped:
			return
		}

		select {
		case sig := <-ch:
			slog.Warn("Second signal received, exiting without flushing",
				slog.String("signal", sig.String()))
			exit(1)
		case <-stopped:
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(ch)
			close(stopped)
			cancel()
		})
		<-done
	}
	return ctx, stop
}
