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
	"sync"

	"golang.org/x/sys/unix"

	"github.com/facebook/timernotify/hostendian"
)

// Waker is an eventfd used to interrupt Registry.Wait from another goroutine.
// Wake is safe for concurrent use with everything else.
type Waker struct {
	mu sync.RWMutex
	fd int
}

// NewWaker creates eventfd with zero counter
func NewWaker() (*Waker, error) {
	// since Linux 2.6.27
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, &CreationError{Resource: ResourceWaker, Err: err}
	}
	return &Waker{fd: fd}, nil
}

// Fd returns underlying file descriptor, -1 once closed
func (w *Waker) Fd() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fd
}

// Wake makes the eventfd readable
func (w *Waker) Wake() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.fd < 0 {
		return ErrClosed
	}
	b := hostendian.CounterBytes(1)
	for {
		_, err := unix.Write(w.fd, b[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		// counter is saturated, wakeup is pending anyway
		if errors.Is(err, unix.EAGAIN) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("writing eventfd: %w", err)
		}
		return nil
	}
}

// Drain resets the eventfd and returns number of wakeups since the last Drain
func (w *Waker) Drain() (uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.fd < 0 {
		return 0, ErrClosed
	}
	var buf [hostendian.CounterSize]byte
	for {
		n, err := unix.Read(w.fd, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("reading eventfd: %w", err)
		}
		if n != len(buf) {
			return 0, fmt.Errorf("short read from eventfd: %d bytes", n)
		}
		return hostendian.Counter(buf), nil
	}
}

// Close releases the eventfd. It's safe to call it more than once.
func (w *Waker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fd < 0 {
		return nil
	}
	err := unix.Close(w.fd)
	w.fd = -1
	return err
}
