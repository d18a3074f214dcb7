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
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/eventlake/internal/parser"
)

const maxLineBytes = 16 * 1024 * 1024

var (
	extractInput  string
	extractOutput string
	extractTopic  string
)

func init() {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Print the partition key of each newline-delimited JSON event",
		Long: `Read one JSON event per line from a file or stdin and print the partition
key the archiver would file it under. Useful for checking parser settings
against sample data.`,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			extractor, err := parser.New(cfg.Parser)
			if err != nil {
				return err
			}

			in := c.InOrStdin()
			if extractInput != "" && extractInput != "-" {
				f, err := os.Open(extractInput)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			return extract(in, c.OutOrStdout(), extractor, extractTopic, extractOutput)
		},
	}

	cmd.Flags().StringVarP(&extractInput, "input", "i", "-", "input file, - for stdin")
	cmd.Flags().StringVarP(&extractOutput, "output", "o", "path", "output format: path, json or yaml")
	cmd.Flags().StringVar(&extractTopic, "topic", "events", "topic name reported to the parser")

	rootCmd.AddCommand(cmd)
}

type extractedKey struct {
	Offset int64  `json:"offset" yaml:"offset"`
	Type   string `json:"type" yaml:"type"`
	Time   string `json:"time" yaml:"time"`
	Path   string `json:"path" yaml:"path"`
}

// extract treats each input line as a message at the next offset of
// partition 0. Blank lines are skipped but still consume an offset.
func extract(r io.Reader, w io.Writer, extractor parser.Extractor, topic, format string) error {
	var emit func(extractedKey) error
	var finish func() error

	switch format {
	case "path", "":
		emit = func(k extractedKey) error {
			_, err := fmt.Fprintln(w, k.Path)
			return err
		}
	case "json":
		enc := json.NewEncoder(w)
		emit = func(k extractedKey) error { return enc.Encode(k) }
	case "yaml":
		var keys []extractedKey
		emit = func(k extractedKey) error {
			keys = append(keys, k)
			return nil
		}
		finish = func() error {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(keys); err != nil {
				return err
			}
			return enc.Close()
		}
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var offset int64
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > 0 {
			key := extractor.ExtractPartitions(parser.Message{
				Topic:   topic,
				Offset:  offset,
				Payload: line,
			})
			err := emit(extractedKey{Offset: offset, Type: key.Type, Time: key.Time, Path: key.Path()})
			if err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}
		offset++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if finish != nil {
		if err := finish(); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	return nil
}
