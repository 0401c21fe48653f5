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
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebook/timernotify/clock"
	"github.com/facebook/timernotify/timerfd"
)

const (
	eventsLen    = 1 << 6  // 64
	maxEventsLen = 1 << 15 // 32768
)

// entry is an armed timerfd and what to do when it fires
type entry struct {
	timer   *timerfd.Timer
	oneShot bool
	fire    func(count uint64)
}

type firing struct {
	fd    int
	e     *entry
	count uint64
}

// Scheduler runs one epoll loop delivering expirations of all its timers.
type Scheduler struct {
	clock    clock.ID
	registry *timerfd.Registry
	waker    *timerfd.Waker
	done     chan struct{}

	mu      sync.Mutex
	entries map[int]*entry
	closed  bool
	err     error // what stopped the loop
}

// NewScheduler creates scheduler with timers based on given clock and starts its loop
func NewScheduler(c clock.ID) (*Scheduler, error) {
	registry, err := timerfd.NewRegistry()
	if err != nil {
		return nil, err
	}
	waker, err := timerfd.NewWaker()
	if err != nil {
		registry.Close()
		return nil, err
	}
	if err := registry.Register(waker.Fd(), timerfd.Readable); err != nil {
		waker.Close()
		registry.Close()
		return nil, fmt.Errorf("registering waker: %w", err)
	}
	s := &Scheduler{
		clock:    c,
		registry: registry,
		waker:    waker,
		done:     make(chan struct{}),
		entries:  map[int]*entry{},
	}
	go s.poll()
	return s, nil
}

// Clock returns clock timers are based on
func (s *Scheduler) Clock() clock.ID {
	return s.clock
}

// Len returns number of active timers
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) start(spec timerfd.Spec, oneShot bool, fire func(uint64)) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(spec, oneShot, fire)
}

func (s *Scheduler) startLocked(spec timerfd.Spec, oneShot bool, fire func(uint64)) (*entry, error) {
	if s.closed {
		return nil, timerfd.ErrClosed
	}
	t, err := timerfd.New(s.clock)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Register(t.Fd(), timerfd.Readable); err != nil {
		t.Close()
		return nil, err
	}
	if err := t.Arm(spec); err != nil {
		_ = s.registry.Unregister(t.Fd())
		t.Close()
		return nil, err
	}
	e := &entry{timer: t, oneShot: oneShot, fire: fire}
	s.entries[t.Fd()] = e
	return e, nil
}

// stop releases the entry and reports whether it was active
func (s *Scheduler) stop(e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(e)
}

func (s *Scheduler) removeLocked(e *entry) bool {
	fd := e.timer.Fd()
	if cur, ok := s.entries[fd]; !ok || cur != e {
		return false
	}
	delete(s.entries, fd)
	if err := s.registry.Unregister(fd); err != nil {
		log.Warningf("unregistering timer %d: %v", fd, err)
	}
	if err := e.timer.Close(); err != nil {
		log.Warningf("closing timer %d: %v", fd, err)
	}
	return true
}

// reset re-arms the entry in place if it's still active, otherwise starts a new one.
// It returns the entry to use from now on and whether the old one was active.
func (s *Scheduler) reset(e *entry, spec timerfd.Spec) (*entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[e.timer.Fd()]; ok && cur == e {
		return e, true, e.timer.Arm(spec)
	}
	ne, err := s.startLocked(spec, e.oneShot, e.fire)
	if err != nil {
		return e, false, err
	}
	return ne, false, nil
}

func (s *Scheduler) poll() {
	defer close(s.done)

	events := make([]unix.EpollEvent, eventsLen)
	fired := []firing{}
	for {
		n, err := s.registry.Wait(events, -1)
		if err != nil {
			log.Errorf("realtime scheduler stopped: %v", err)
			s.shutdown(err)
			return
		}

		fired = fired[:0]
		s.mu.Lock()
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == s.waker.Fd() {
				if _, err := s.waker.Drain(); err != nil {
					log.Warningf("draining waker: %v", err)
				}
				continue
			}
			e, ok := s.entries[fd]
			if !ok {
				continue
			}
			// fd may belong to a timer started after epoll_wait returned, or re-armed by Reset
			count, err := e.timer.Read()
			if err != nil {
				if !errors.Is(err, timerfd.ErrWouldBlock) {
					log.Warningf("reading timer %d: %v", fd, err)
				}
				continue
			}
			if e.oneShot {
				s.removeLocked(e)
			}
			fired = append(fired, firing{fd: fd, e: e, count: count})
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			s.shutdown(nil)
			return
		}
		for _, f := range fired {
			s.dispatch(f)
		}

		if n == len(events) && n*2 <= maxEventsLen {
			events = make([]unix.EpollEvent, n*2)
		}
	}
}

// dispatch fires the entry unless it was stopped since it was read.
// Handlers never block: channels are sent to with select/default and funcs get their own goroutine.
func (s *Scheduler) dispatch(f firing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	// one-shot entries are released before dispatch, Stop on them already reports false
	if !f.e.oneShot && s.entries[f.fd] != f.e {
		return
	}
	f.e.fire(f.count)
}

func (s *Scheduler) shutdown(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.err = err
	for _, e := range s.entries {
		s.removeLocked(e)
	}
	if err := s.registry.Close(); err != nil {
		log.Warningf("closing epoll: %v", err)
	}
	if err := s.waker.Close(); err != nil {
		log.Warningf("closing eventfd: %v", err)
	}
}

// Close stops all timers and the loop, releasing all file descriptors.
// Pending timers never fire. Error which stopped the loop earlier, if any, is returned.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	closed := s.closed
	s.closed = true
	s.mu.Unlock()
	if !closed {
		// loop may have shut down on its own in the meantime
		if err := s.waker.Wake(); err != nil && !errors.Is(err, timerfd.ErrClosed) {
			return err
		}
	}
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// NewTimer creates a Timer that sends current time on its channel after at least d.
// Negative d fires immediately.
func (s *Scheduler) NewTimer(d time.Duration) (*Timer, error) {
	c := make(chan Time, 1)
	t := &Timer{C: c, s: s}
	e, err := s.start(oneShotSpec(d), true, func(uint64) {
		select {
		case c <- Now():
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	t.e = e
	return t, nil
}

// AfterFunc waits for d and then calls f in its own goroutine
func (s *Scheduler) AfterFunc(d time.Duration, f func()) (*Timer, error) {
	t := &Timer{s: s}
	e, err := s.start(oneShotSpec(d), true, func(uint64) {
		if f != nil {
			go f()
		}
	})
	if err != nil {
		return nil, err
	}
	t.e = e
	return t, nil
}

// After waits for d and then sends current time on the returned channel
func (s *Scheduler) After(d time.Duration) (<-chan Time, error) {
	t, err := s.NewTimer(d)
	if err != nil {
		return nil, err
	}
	return t.C, nil
}

// Sleep pauses for at least d, or until ctx is done
func (s *Scheduler) Sleep(ctx context.Context, d time.Duration) error {
	t, err := s.NewTimer(d)
	if err != nil {
		return err
	}
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewTicker creates a Ticker sending current time on its channel every d.
// Ticks are dropped for slow receivers, the count of missed ones is in Ticker.Missed.
func (s *Scheduler) NewTicker(d time.Duration) (*Ticker, error) {
	if d <= 0 {
		return nil, fmt.Errorf("non-positive interval %v for ticker", d)
	}
	c := make(chan Time, 1)
	t := &Ticker{C: c, s: s}
	e, err := s.start(timerfd.Spec{InitialDelay: d, Interval: d}, false, func(count uint64) {
		t.missed.Add(count - 1)
		select {
		case c <- Now():
		default:
			t.missed.Add(1)
		}
	})
	if err != nil {
		return nil, err
	}
	t.e = e
	return t, nil
}
