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

package realtime

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facebook/timernotify/timerfd"
)

func oneShotSpec(d time.Duration) timerfd.Spec {
	if d < 0 {
		d = 0
	}
	return timerfd.Spec{InitialDelay: d}
}

// Timer is a single event. When it expires, current time is sent on C,
// unless the Timer was created by AfterFunc.
type Timer struct {
	C <-chan Time

	s  *Scheduler
	mu sync.Mutex
	e  *entry
}

// Stop prevents the Timer from firing. It returns false if the timer
// has already expired or been stopped. Stop does not drain C.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s.stop(t.e)
}

// Reset changes the timer to expire after d. It reports whether the timer
// had been active. Error is returned if a new timerfd is needed and can't be created.
func (t *Timer) Reset(d time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, active, err := t.s.reset(t.e, oneShotSpec(d))
	t.e = e
	return active, err
}

// Ticker delivers ticks of a clock at intervals
type Ticker struct {
	C <-chan Time

	s      *Scheduler
	mu     sync.Mutex
	e      *entry
	missed atomic.Uint64
}

// Stop turns off the ticker. No more ticks are sent after Stop returns,
// though one may still be buffered in C.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.stop(t.e)
}

// Reset stops the ticker and resets its period to d.
// The next tick arrives after the new period elapses.
func (t *Ticker) Reset(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("non-positive interval %v for ticker reset", d)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e, _, err := t.s.reset(t.e, timerfd.Spec{InitialDelay: d, Interval: d})
	t.e = e
	return err
}

// Missed returns number of ticks dropped, either coalesced by the kernel
// or not delivered because C was full
func (t *Ticker) Missed() uint64 {
	return t.missed.Load()
}
