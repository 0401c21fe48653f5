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

package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebook/timernotify/clock"
	"github.com/facebook/timernotify/timerfd"
)

// maxEvents is how many ready sources we take per wakeup: the timer and the waker
const maxEvents = 2

//go:generate mockgen -source=notifier.go -destination=mock_stats_test.go -package=notifier

// StatsServer is a stats server interface
type StatsServer interface {
	SetCounter(key string, val int64)
	UpdateCounterBy(key string, count int64)
}

// Notifier owns a periodic timer and blocks until it fires,
// reporting how many intervals elapsed since the previous observation.
// Missed expirations are coalesced into a single tick.
// It's meant to be used from one goroutine.
type Notifier struct {
	cfg   *Config
	stats StatsServer

	timer    *timerfd.Timer
	registry *timerfd.Registry
	waker    *timerfd.Waker
	events   []unix.EpollEvent

	intervals *intervalStats
	lastTick  time.Duration
}

// New creates the timer and the registry and registers the timer for readiness.
// The timer is not armed until Start is called.
// Errors are *timerfd.CreationError if kernel objects can't be allocated.
func New(cfg *Config, stats StatsServer) (*Notifier, error) {
	n := &Notifier{
		cfg:       cfg,
		stats:     stats,
		events:    make([]unix.EpollEvent, maxEvents),
		intervals: newIntervalStats(cfg.Interval),
	}
	var err error
	if n.timer, err = timerfd.New(cfg.Clock); err != nil {
		return nil, err
	}
	if n.registry, err = timerfd.NewRegistry(); err != nil {
		n.Close()
		return nil, err
	}
	if n.waker, err = timerfd.NewWaker(); err != nil {
		n.Close()
		return nil, err
	}
	if err = n.registry.Register(n.timer.Fd(), timerfd.Readable); err != nil {
		n.Close()
		return nil, fmt.Errorf("registering timer: %w", err)
	}
	if err = n.registry.Register(n.waker.Fd(), timerfd.Readable); err != nil {
		n.Close()
		return nil, fmt.Errorf("registering waker: %w", err)
	}
	for _, c := range []string{"ticks", "expirations", "overruns", "missed", "spurious_wakeups", "report_error"} {
		n.stats.SetCounter(c, 0)
	}
	return n, nil
}

// Timer returns underlying timer
func (n *Notifier) Timer() *timerfd.Timer {
	return n.timer
}

// Start arms the timer. Errors are *timerfd.ConfigError.
func (n *Notifier) Start() error {
	spec := n.cfg.Spec()
	if err := n.timer.Arm(spec); err != nil {
		return err
	}
	n.lastTick = n.now()
	log.Debugf("timer on %s armed, initial delay %v, interval %v", n.cfg.Clock, spec.InitialDelay, spec.Interval)
	return nil
}

func (n *Notifier) now() time.Duration {
	t, err := clock.Gettime(n.cfg.Clock)
	if err != nil {
		log.Warningf("reading %s clock: %v", n.cfg.Clock, err)
	}
	return t
}

// Wait blocks until the timer fires and returns the tick.
// It returns ctx.Err() once ctx is done.
func (n *Notifier) Wait(ctx context.Context) (*Tick, error) {
	stop := context.AfterFunc(ctx, func() {
		if err := n.waker.Wake(); err != nil && !errors.Is(err, timerfd.ErrClosed) {
			log.Errorf("waking up notifier: %v", err)
		}
	})
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nfds, err := n.registry.Wait(n.events, -1)
		if err != nil {
			return nil, err
		}
		timerReady := false
		for i := 0; i < nfds; i++ {
			switch int(n.events[i].Fd) {
			case n.waker.Fd():
				if _, err := n.waker.Drain(); err != nil {
					return nil, err
				}
			case n.timer.Fd():
				timerReady = true
			}
		}
		// cancellation wins over a tick ready in the same batch, the expirations stay in the timer
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !timerReady {
			continue
		}
		count, err := n.timer.Read()
		if errors.Is(err, timerfd.ErrWouldBlock) {
			log.Debug("timer readiness without expirations")
			n.stats.UpdateCounterBy("spurious_wakeups", 1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return n.observe(count), nil
	}
}

func (n *Notifier) observe(count uint64) *Tick {
	now := n.now()
	t := &Tick{
		Count: count,
		At:    now,
		Since: now - n.lastTick,
	}
	n.lastTick = now
	n.intervals.add(t)

	s := n.intervals.summary
	n.stats.UpdateCounterBy("ticks", 1)
	n.stats.UpdateCounterBy("expirations", int64(count))
	n.stats.SetCounter("last_count", int64(count))
	if t.Overrun() {
		n.stats.UpdateCounterBy("overruns", 1)
		n.stats.UpdateCounterBy("missed", int64(count-1))
	}
	n.stats.SetCounter("interval.mean_ns", int64(s.Mean))
	n.stats.SetCounter("interval.stddev_ns", int64(s.Stddev))
	n.stats.SetCounter("interval.max_deviation_ns", int64(s.MaxDeviation))
	return t
}

// Summary returns statistics of ticks observed so far
func (n *Notifier) Summary() Summary {
	return n.intervals.summary
}

// Run waits for ticks and passes them to the reporter until ctx is done.
// Failing to report a tick is logged and doesn't stop the loop.
// With zero interval the timer fires once and Run keeps waiting for ctx.
func (n *Notifier) Run(ctx context.Context, r Reporter) error {
	for {
		t, err := n.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := r.Report(t); err != nil {
			log.Errorf("failed to report tick: %v", err)
			n.stats.UpdateCounterBy("report_error", 1)
		}
	}
}

// Collect waits for count ticks and returns them
func (n *Notifier) Collect(ctx context.Context, count int) ([]*Tick, error) {
	ticks := make([]*Tick, 0, count)
	for len(ticks) < count {
		t, err := n.Wait(ctx)
		if err != nil {
			return ticks, err
		}
		ticks = append(ticks, t)
	}
	return ticks, nil
}

// Close releases the timer, the waker and the registry
func (n *Notifier) Close() error {
	var errs []error
	if n.registry != nil {
		errs = append(errs, n.registry.Close())
	}
	if n.waker != nil {
		errs = append(errs, n.waker.Close())
	}
	if n.timer != nil {
		errs = append(errs, n.timer.Close())
	}
	return errors.Join(errs...)
}
