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

// Package config loads the eventlake configuration from an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/cardinalhq/eventlake/internal/archive"
	"github.com/cardinalhq/eventlake/internal/cloudstorage"
	"github.com/cardinalhq/eventlake/internal/fly"
	"github.com/cardinalhq/eventlake/internal/healthcheck"
	"github.com/cardinalhq/eventlake/internal/parser"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Kafka   fly.Config           `mapstructure:"kafka"`
	Parser  parser.Config        `mapstructure:"parser"`
	Storage cloudstorage.Profile `mapstructure:"storage"`
	Archive archive.Config       `mapstructure:"archive"`
	Health  healthcheck.Config   `mapstructure:"health"`
}

// Default returns every section's defaults.
func Default() *Config {
	return &Config{
		Kafka:   fly.DefaultConfig(),
		Parser:  parser.DefaultConfig(),
		Storage: cloudstorage.DefaultProfile(),
		Archive: archive.DefaultConfig(),
		Health:  healthcheck.DefaultConfig(),
	}
}

// Load reads config.yaml from the working directory, if present, and the
// environment. Environment variables use the prefix "EVENTLAKE" and the
// dot character in keys is replaced by an underscore. For example,
// "parser.bucket_format" becomes "EVENTLAKE_PARSER_BUCKET_FORMAT".
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// the working directory for config.yaml and tolerates its absence.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if b := v.GetString("kafka.brokers"); b != "" {
		cfg.Kafka.Brokers = splitList(b)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := append(append([]string(nil), parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
