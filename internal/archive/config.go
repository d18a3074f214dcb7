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

// Package archive writes consumed messages into gzip JSON-lines files, one
// per partition key, and uploads them to object storage.
package archive

import (
	"fmt"
	"time"
)

// Config controls spooling and file rotation. A file rotates when any
// non-zero limit is reached. MaxFileBytes counts uncompressed payload
// bytes including the newline after each message.
type Config struct {
	SpoolDir        string        `mapstructure:"spool_dir"`
	MaxFileBytes    int64         `mapstructure:"max_file_bytes"`
	MaxFileMessages int           `mapstructure:"max_file_messages"`
	MaxFileAge      time.Duration `mapstructure:"max_file_age"`
}

func DefaultConfig() Config {
	return Config{
		SpoolDir:        "./spool",
		MaxFileBytes:    128 * 1024 * 1024,
		MaxFileMessages: 1_000_000,
		MaxFileAge:      10 * time.Minute,
	}
}

func (c Config) Validate() error {
	if c.SpoolDir == "" {
		return fmt.Errorf("archive: spool_dir is required")
	}
	if c.MaxFileBytes < 0 || c.MaxFileMessages < 0 || c.MaxFileAge < 0 {
		return fmt.Errorf("archive: rotation limits must not be negative")
	}
	if c.MaxFileBytes == 0 && c.MaxFileMessages == 0 && c.MaxFileAge == 0 {
		return fmt.Errorf("archive: at least one of max_file_bytes, max_file_messages, max_file_age must be set")
	}
	return nil
}

// Destination is where uploaded objects land.
type Destination struct {
	Bucket string
	Prefix string
}
