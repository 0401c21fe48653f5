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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRegistryRegisterTwice(t *testing.T) {
	timer := newTestTimer(t)
	r := newTestRegistry(t)

	require.NoError(t, r.Register(timer.Fd(), Readable))
	require.ErrorIs(t, r.Register(timer.Fd(), Readable), ErrAlreadyRegistered)
	require.Equal(t, 1, r.Len())

	events, ok := r.Interest(timer.Fd())
	require.True(t, ok)
	require.Equal(t, Readable, events)
}

func TestRegistryUnregister(t *testing.T) {
	timer := newTestTimer(t)
	r := newTestRegistry(t, timer.Fd())

	require.NoError(t, r.Unregister(timer.Fd()))
	require.Equal(t, 0, r.Len())
	require.ErrorIs(t, r.Unregister(timer.Fd()), ErrNotRegistered)
	require.ErrorIs(t, r.Modify(timer.Fd(), Readable), ErrNotRegistered)

	// can be registered again
	require.NoError(t, r.Register(timer.Fd(), Readable))
}

func TestRegistryUnregisteredSourceIsNotReported(t *testing.T) {
	timer := newTestTimer(t)
	r := newTestRegistry(t, timer.Fd())
	require.NoError(t, timer.Arm(Spec{}))
	require.NoError(t, r.Unregister(timer.Fd()))

	events := make([]unix.EpollEvent, 1)
	n, err := r.Wait(events, 20*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestRegistryWaitPoll(t *testing.T) {
	timer := newTestTimer(t)
	r := newTestRegistry(t, timer.Fd())
	events := make([]unix.EpollEvent, 4)

	start := time.Now()
	n, err := r.Wait(events, 0)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRegistryWaitTimeout(t *testing.T) {
	const timeout = 30 * time.Millisecond
	timer := newTestTimer(t)
	r := newTestRegistry(t, timer.Fd())
	events := make([]unix.EpollEvent, 4)

	start := time.Now()
	n, err := r.Wait(events, timeout)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.GreaterOrEqual(t, time.Since(start), timeout)
}

func TestRegistryWaitNoRoom(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Wait(nil, 0)
	require.Error(t, err)
}

func TestRegistryMultipleSources(t *testing.T) {
	t1 := newTestTimer(t)
	t2 := newTestTimer(t)
	r := newTestRegistry(t, t1.Fd(), t2.Fd())
	require.NoError(t, t1.Arm(Spec{}))
	require.NoError(t, t2.Arm(Spec{}))
	time.Sleep(10 * time.Millisecond)

	events := make([]unix.EpollEvent, 4)
	n, err := r.Wait(events, time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	ready := []int32{events[0].Fd, events[1].Fd}
	require.ElementsMatch(t, []int32{int32(t1.Fd()), int32(t2.Fd())}, ready)
}

func TestRegistryClose(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	require.ErrorIs(t, r.Register(0, Readable), ErrClosed)
	require.ErrorIs(t, r.Unregister(0), ErrClosed)
}

func TestCeilMillis(t *testing.T) {
	require.Equal(t, 0, ceilMillis(-time.Second))
	require.Equal(t, 0, ceilMillis(0))
	require.Equal(t, 1, ceilMillis(time.Nanosecond))
	require.Equal(t, 1, ceilMillis(time.Millisecond))
	require.Equal(t, 2, ceilMillis(1001*time.Microsecond))
}
