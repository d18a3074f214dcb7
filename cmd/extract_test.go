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
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/eventlake/internal/parser"
)

const sampleEvents = `{"timestamp":"2014-10-17T01:34:22.450+00:00","type":"track","event":"availability"}
{"timestamp":"2014-10-17T13:34:22.450+00:00","type":"identify"}

{"timestamp":"222222222222","type":"track","event":"Task Scheduler - Task Published Event   - V 1.0"}
not json
`

func analyticsExtractor(t *testing.T) parser.Extractor {
	t.Helper()
	p, err := parser.New(parser.DefaultConfig())
	require.NoError(t, err)
	return p
}

func TestExtract_Path(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, extract(strings.NewReader(sampleEvents), &out, analyticsExtractor(t), "events", "path"))

	assert.Equal(t, []string{
		"availability/2014/10/17/01",
		"identify/2014/10/17/13",
		"taskscheduler-taskpublishedevent-v1-0/1970/01/01/00",
		"untyped/1970/01/01/00",
	}, strings.Split(strings.TrimSpace(out.String()), "\n"))
}

func TestExtract_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, extract(strings.NewReader(sampleEvents), &out, analyticsExtractor(t), "events", "json"))

	dec := json.NewDecoder(&out)
	var got []extractedKey
	for dec.More() {
		var k extractedKey
		require.NoError(t, dec.Decode(&k))
		got = append(got, k)
	}
	require.Len(t, got, 4)
	assert.Equal(t, extractedKey{Offset: 0, Type: "availability", Time: "2014/10/17/01", Path: "availability/2014/10/17/01"}, got[0])
	assert.Equal(t, int64(3), got[2].Offset, "blank lines still use an offset")
}

func TestExtract_YAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, extract(strings.NewReader(sampleEvents), &out, analyticsExtractor(t), "events", "yaml"))

	var got []extractedKey
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 4)
	assert.Equal(t, "identify", got[1].Type)
	assert.Equal(t, "2014/10/17/13", got[1].Time)
}

func TestExtract_OffsetParserUsesTopicAndLine(t *testing.T) {
	cfg := parser.DefaultConfig()
	cfg.Name = parser.NameOffset
	cfg.OffsetsPerPartition = 2
	p, err := parser.New(cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, extract(strings.NewReader("{}\n{}\n{}\n"), &out, p, "Web.Events", "path"))
	assert.Equal(t, "web-events/offset=0\nweb-events/offset=0\nweb-events/offset=2\n", out.String())
}

func TestExtract_UnknownFormat(t *testing.T) {
	err := extract(strings.NewReader(sampleEvents), &bytes.Buffer{}, analyticsExtractor(t), "events", "csv")
	assert.ErrorContains(t, err, `unknown output format "csv"`)
}

func TestExtract_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, extract(strings.NewReader(""), &out, analyticsExtractor(t), "events", "path"))
	assert.Empty(t, out.String())
}
