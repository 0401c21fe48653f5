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

package timerfd

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/facebook/timernotify/clock"
	"github.com/facebook/timernotify/hostendian"
)

// minDelay is used instead of zero initial delay, which kernel treats as disarm
const minDelay = time.Nanosecond

// Spec describes how the timer is armed
type Spec struct {
	// InitialDelay is time until the first expiration. Zero means as soon as possible.
	InitialDelay time.Duration
	// Interval is the period of expirations after the first one. Zero means fire once.
	Interval time.Duration
}

// Validate makes sure timer can be armed with the spec
func (s Spec) Validate() error {
	if s.InitialDelay < 0 {
		return fmt.Errorf("initial delay %v is negative", s.InitialDelay)
	}
	if s.Interval < 0 {
		return fmt.Errorf("interval %v is negative", s.Interval)
	}
	return nil
}

func (s Spec) itimerspec() unix.ItimerSpec {
	delay := s.InitialDelay
	if delay == 0 {
		delay = minDelay
	}
	return unix.ItimerSpec{
		Value:    unix.NsecToTimespec(int64(delay)),
		Interval: unix.NsecToTimespec(int64(s.Interval)),
	}
}

// Timer is a timerfd based on one of the kernel clocks.
// It's not safe for concurrent use.
type Timer struct {
	fd    int
	clock clock.ID
}

// New creates disarmed timer based on the given clock
func New(c clock.ID) (*Timer, error) {
	fd, err := unix.TimerfdCreate(int(c), unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, &CreationError{Resource: ResourceTimer, Err: err}
	}
	return &Timer{fd: fd, clock: c}, nil
}

// Fd returns underlying file descriptor, -1 once closed
func (t *Timer) Fd() int {
	return t.fd
}

// Clock returns clock the timer is based on
func (t *Timer) Clock() clock.ID {
	return t.clock
}

// Arm starts the timer. Arming already armed timer replaces its settings
// and resets the expiration counter.
func (t *Timer) Arm(s Spec) error {
	if t.fd < 0 {
		return &ConfigError{Op: "arm", Err: ErrClosed}
	}
	if err := s.Validate(); err != nil {
		return &ConfigError{Op: "arm", Err: err}
	}
	its := s.itimerspec()
	if err := unix.TimerfdSettime(t.fd, 0, &its, nil); err != nil {
		return &ConfigError{Op: "arm", Err: fmt.Errorf("timerfd_settime: %w", err)}
	}
	return nil
}

// Disarm stops the timer
func (t *Timer) Disarm() error {
	if t.fd < 0 {
		return &ConfigError{Op: "disarm", Err: ErrClosed}
	}
	its := unix.ItimerSpec{}
	if err := unix.TimerfdSettime(t.fd, 0, &its, nil); err != nil {
		return &ConfigError{Op: "disarm", Err: fmt.Errorf("timerfd_settime: %w", err)}
	}
	return nil
}

// Get returns current timer settings. InitialDelay holds the time left until
// next expiration, both fields are zero when timer is disarmed.
func (t *Timer) Get() (Spec, error) {
	if t.fd < 0 {
		return Spec{}, ErrClosed
	}
	its := unix.ItimerSpec{}
	if err := unix.TimerfdGettime(t.fd, &its); err != nil {
		return Spec{}, fmt.Errorf("timerfd_gettime: %w", err)
	}
	return Spec{
		InitialDelay: time.Duration(its.Value.Nano()),
		Interval:     time.Duration(its.Interval.Nano()),
	}, nil
}

// Read returns number of expirations since the last successful read.
// ErrWouldBlock is returned if timer hasn't expired.
func (t *Timer) Read() (uint64, error) {
	if t.fd < 0 {
		return 0, ErrClosed
	}
	var buf [hostendian.CounterSize]byte
	for {
		n, err := unix.Read(t.fd, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			return 0, ErrWouldBlock
		}
		if err != nil {
			return 0, fmt.Errorf("reading timerfd: %w", err)
		}
		if n != len(buf) {
			return 0, fmt.Errorf("short read from timerfd: %d bytes", n)
		}
		return hostendian.Counter(buf), nil
	}
}

// Close releases the timer. It's safe to call it more than once.
func (t *Timer) Close() error {
	if t.fd < 0 {
		return nil
	}
	err := unix.Close(t.fd)
	t.fd = -1
	return err
}
