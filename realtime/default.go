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
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// defaultState is created once, a failure is kept and reported to every caller
type defaultState struct {
	once sync.Once
	s    *Scheduler
	err  error
}

var (
	defaultSched        = &defaultState{}
	newDefaultScheduler = func() (*Scheduler, error) { return NewScheduler(nowClock) }
)

// Default returns scheduler used by package-level functions, creating it on first use.
// Its timers are based on the same clock as Now. It panics if the scheduler can't be created.
func Default() *Scheduler {
	d := defaultSched
	d.once.Do(func() {
		d.s, d.err = newDefaultScheduler()
		if d.err != nil {
			log.Errorf("creating default realtime scheduler: %v", d.err)
		}
	})
	if d.err != nil {
		panic(d.err)
	}
	return d.s
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// NewTimer is Default().NewTimer, panicking on error
func NewTimer(d time.Duration) *Timer {
	return must(Default().NewTimer(d))
}

// NewTicker is Default().NewTicker, panicking on error
func NewTicker(d time.Duration) *Ticker {
	return must(Default().NewTicker(d))
}

// AfterFunc is Default().AfterFunc, panicking on error
func AfterFunc(d time.Duration, f func()) *Timer {
	return must(Default().AfterFunc(d, f))
}

// After is Default().After, panicking on error
func After(d time.Duration) <-chan Time {
	return must(Default().After(d))
}

// Tick returns ticker channel, or nil if d <= 0. The ticker can't be stopped.
func Tick(d time.Duration) <-chan Time {
	if d <= 0 {
		return nil
	}
	return NewTicker(d).C
}

// Sleep pauses current goroutine for at least d
func Sleep(d time.Duration) {
	if err := Default().Sleep(context.Background(), d); err != nil {
		panic(err)
	}
}
