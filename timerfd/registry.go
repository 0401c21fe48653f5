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
	"time"

	"golang.org/x/sys/unix"
)

// Readable is interest in the source having data to read
const Readable uint32 = unix.EPOLLIN

// Registry multiplexes readiness of registered sources over one epoll instance.
// Register, Modify and Unregister are safe for concurrent use, Wait may run
// concurrently with them. Close must not race with Wait.
type Registry struct {
	fd int

	sourcesMu sync.Mutex
	sources   map[int]uint32
}

// NewRegistry creates empty registry
func NewRegistry() (*Registry, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, &CreationError{Resource: ResourceRegistry, Err: err}
	}
	return &Registry{
		fd:      fd,
		sources: map[int]uint32{},
	}, nil
}

// Register adds fd as a source with given interest mask.
// Registering the same fd twice is an error.
func (r *Registry) Register(fd int, events uint32) error {
	r.sourcesMu.Lock()
	defer r.sourcesMu.Unlock()
	if r.sources == nil {
		return ErrClosed
	}
	if _, ok := r.sources[fd]; ok {
		return fmt.Errorf("fd %d: %w", fd, ErrAlreadyRegistered)
	}
	ev := &unix.EpollEvent{
		Events: events,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(r.fd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return fmt.Errorf("fd %d: %w", fd, ErrAlreadyRegistered)
		}
		return fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}
	r.sources[fd] = events
	return nil
}

// Modify changes interest mask of registered source
func (r *Registry) Modify(fd int, events uint32) error {
	r.sourcesMu.Lock()
	defer r.sourcesMu.Unlock()
	if r.sources == nil {
		return ErrClosed
	}
	if _, ok := r.sources[fd]; !ok {
		return fmt.Errorf("fd %d: %w", fd, ErrNotRegistered)
	}
	ev := &unix.EpollEvent{
		Events: events,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(r.fd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return fmt.Errorf("epoll_ctl mod fd %d: %w", fd, err)
	}
	r.sources[fd] = events
	return nil
}

// Unregister removes the source. It has to be called before the source fd is closed,
// otherwise the kernel may keep reporting it.
func (r *Registry) Unregister(fd int) error {
	r.sourcesMu.Lock()
	defer r.sourcesMu.Unlock()
	if r.sources == nil {
		return ErrClosed
	}
	if _, ok := r.sources[fd]; !ok {
		return fmt.Errorf("fd %d: %w", fd, ErrNotRegistered)
	}
	delete(r.sources, fd)
	// The event argument is ignored and can be nil since Linux 2.6.9
	if err := unix.EpollCtl(r.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll_ctl del fd %d: %w", fd, err)
	}
	return nil
}

// Interest returns interest mask of the source
func (r *Registry) Interest(fd int) (uint32, bool) {
	r.sourcesMu.Lock()
	defer r.sourcesMu.Unlock()
	events, ok := r.sources[fd]
	return events, ok
}

// Len returns number of registered sources
func (r *Registry) Len() int {
	r.sourcesMu.Lock()
	defer r.sourcesMu.Unlock()
	return len(r.sources)
}

// Wait blocks until at least one source is ready or timeout elapses and fills events.
// Negative timeout means wait forever, zero means return immediately.
// Interrupted waits are retried with what is left of the timeout.
// Number of ready sources is returned, it's 0 on timeout.
func (r *Registry) Wait(events []unix.EpollEvent, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, fmt.Errorf("no room for events")
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		msec := -1
		if timeout == 0 {
			msec = 0
		} else if timeout > 0 {
			msec = ceilMillis(time.Until(deadline))
		}
		n, err := unix.EpollWait(r.fd, events, msec)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("epoll_wait: %w", err)
		}
		return n, nil
	}
}

// ceilMillis rounds up so we never wake up before the deadline
func ceilMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}

// Close releases epoll instance. Sources are not closed.
func (r *Registry) Close() error {
	r.sourcesMu.Lock()
	defer r.sourcesMu.Unlock()
	if r.sources == nil {
		return nil
	}
	r.sources = nil
	return unix.Close(r.fd)
}
