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

package idgen

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sony/sonyflake"
)

var flakeEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultFlakeGenerator is created on first use. Hosts without a private
// IPv4 address derive the machine id from the hostname instead.
var DefaultFlakeGenerator = sync.OnceValues(func() (*SonyFlakeGenerator, error) {
	return newFlakeGenerator(nil)
})

type SonyFlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// newFlakeGenerator uses machineID, or sonyflake's private-IP default when
// nil. If that source fails, the hostname hash is used.
func newFlakeGenerator(machineID func() (uint16, error)) (*SonyFlakeGenerator, error) {
	settings := sonyflake.Settings{
		StartTime: flakeEpoch,
		MachineID: machineID,
	}

	sf, err := sonyflake.New(settings)
	if err != nil {
		settings.MachineID = hostnameMachineID
		sf, err = sonyflake.New(settings)
	}
	if err != nil {
		return nil, fmt.Errorf("create sonyflake: %w", err)
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &SonyFlakeGenerator{sf: sf}, nil
}

func hostnameMachineID() (uint16, error) {
	host, err := os.Hostname()
	if err != nil {
		return 0, err
	}
	return machineIDFor(host), nil
}

func machineIDFor(host string) uint16 {
	return uint16(xxhash.Sum64String(host))
}

func (sf *SonyFlakeGenerator) NextID() int64 {
	v, err := sf.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

// NextBase32ID returns NextID as unpadded lowercase base32.
func (sf *SonyFlakeGenerator) NextBase32ID() string {
	return encodeBase32(uint64(sf.NextID()))
}

func encodeBase32(v uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b[:]))
}

// NextBase32ID returns the next id from DefaultFlakeGenerator, or a random
// id of the same shape when no generator could be built.
func NextBase32ID() string {
	gen, err := DefaultFlakeGenerator()
	if err != nil {
		return encodeBase32(rand.Uint64() >> 1)
	}
	return gen.NextBase32ID()
}
