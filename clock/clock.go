//go:build linux

/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package clock

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// PPBToTimexPPM is what we use to conver PPB to PPM.
// man clock_adjtime(2):
// In struct timex, freq, ppsfreq, and stabil are ppm (parts per million) with a 16-bit fractional part.
// To covert value where 2^16=65536 is 1 ppm to ppb or back, we need this multiplier
const PPBToTimexPPM = 65.536

// ID is a kernel clock id
type ID int32

// Clocks a timer can be based on
const (
	// Realtime is the settable system-wide clock
	Realtime ID = unix.CLOCK_REALTIME
	// Monotonic only moves forward and is not affected by clock steps. It doesn't count suspend.
	Monotonic ID = unix.CLOCK_MONOTONIC
	// Boottime is Monotonic that also counts time the system was suspended
	Boottime ID = unix.CLOCK_BOOTTIME
)

var idToString = map[ID]string{
	Realtime:  "realtime",
	Monotonic: "monotonic",
	Boottime:  "boottime",
}

func (c ID) String() string {
	if s, ok := idToString[c]; ok {
		return s
	}
	return fmt.Sprintf("clock(%d)", int32(c))
}

// ParseID returns clock id by its name
func ParseID(name string) (ID, error) {
	name = strings.ToLower(strings.TrimPrefix(strings.ToUpper(name), "CLOCK_"))
	for id, s := range idToString {
		if s == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unsupported clock %q", name)
}

// Set implements pflag.Value interface
func (c *ID) Set(name string) error {
	id, err := ParseID(name)
	if err != nil {
		return err
	}
	*c = id
	return nil
}

// Type implements pflag.Value interface
func (c *ID) Type() string {
	return "clock"
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *ID) UnmarshalText(text []byte) error {
	return c.Set(string(text))
}

// UnmarshalYAML implements yaml.Unmarshaler
func (c *ID) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	return c.Set(name)
}

// Gettime reads the clock. The value is the time since clock's epoch.
func Gettime(c ID) (time.Duration, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(int32(c), &ts); err != nil {
		return 0, fmt.Errorf("clock_gettime %s: %w", c, err)
	}
	return time.Duration(ts.Nano()), nil
}

// FrequencyPPB reads frequency correction applied to the clock in PPB
func FrequencyPPB(c ID) (freqPPB float64, state int, err error) {
	tx := &unix.Timex{}
	state, err = unix.ClockAdjtime(int32(c), tx)
	// man(2) clock_adjtime
	freqPPB = float64(tx.Freq) / PPBToTimexPPM
	return freqPPB, state, err
}
