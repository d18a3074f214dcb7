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


package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	gomaxecs "github.com/rdforte/gomaxecs/maxprocs"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cardinalhq/eventlake/cmd"
)

// memoryRatio leaves headroom below the container limit for gzip buffers
// and the kafka reader's fetch queue.
const memoryRatio = 0.8

func main() {
	// Log timestamps use UTC like the partition buckets.
	time.Local = time.UTC
	tuneRuntime(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	cmd.Execute()
}

// tuneRuntime sizes GOMAXPROCS and GOMEMLIMIT to the container before any
// consumer starts. Failures are logged and the Go defaults are kept.
func tuneRuntime(logger *slog.Logger) {
	printf := func(format string, args ...any) {
		logger.Info("Runtime tuning", slog.String("detail", fmt.Sprintf(format, args...)))
	}

	if gomaxecs.IsECS() {
		if _, err := gomaxecs.Set(gomaxecs.WithLogger(printf)); err != nil {
			logger.Warn("Could not set GOMAXPROCS from ECS task metadata", slog.Any("error", err))
		}
	} else if _, err := maxprocs.Set(maxprocs.Logger(printf)); err != nil {
		logger.Warn("Could not set GOMAXPROCS from cgroup quota", slog.Any("error", err))
	}

	limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(memoryRatio),
		memlimit.WithLogger(logger),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	)
	if err != nil {
		logger.Warn("Could not set GOMEMLIMIT", slog.Any("error", err))
		return
	}
	logger.Debug("GOMEMLIMIT set", slog.Int64("bytes", limit))
}
