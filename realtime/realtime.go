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

/*
Package realtime provides timers and tickers shaped like the ones in the time
package, but driven by kernel timerfds multiplexed over a single epoll loop.

Timers are based on CLOCK_BOOTTIME by default, so time spent in suspend counts
towards their expiration, unlike runtime timers. Time values are readings of the
same clock.

When several timers are ready within one wakeup of the loop, they are fired in
the order epoll reports them. No other ordering is guaranteed.
*/
package realtime

import (
	"time"

	"github.com/facebook/timernotify/clock"
)

// nowClock is the clock Now reads, CLOCK_MONOTONIC is used on kernels without CLOCK_BOOTTIME
var nowClock = clock.Boottime

func init() {
	if _, err := clock.Gettime(nowClock); err != nil {
		nowClock = clock.Monotonic
	}
}

// Time is a reading of the clock timers are based on
type Time struct {
	ns time.Duration
}

// Now returns current time. It panics if the clock can't be read.
func Now() Time {
	ns, err := clock.Gettime(nowClock)
	if err != nil {
		panic(err)
	}
	return Time{ns: ns}
}

// Since returns time elapsed since u
func Since(u Time) time.Duration {
	return Now().ns - u.ns
}

// Sub returns duration t-u
func (t Time) Sub(u Time) time.Duration {
	return t.ns - u.ns
}

// Nano returns time since clock epoch
func (t Time) Nano() time.Duration {
	return t.ns
}

// Before reports whether t is before u
func (t Time) Before(u Time) bool {
	return t.ns < u.ns
}

// After reports whether t is after u
func (t Time) After(u Time) bool {
	return t.ns > u.ns
}

// Add returns t+d
func (t Time) Add(d time.Duration) Time {
	t.ns += d
	return t
}

func (t Time) String() string {
	return t.ns.String()
}
