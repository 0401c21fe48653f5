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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/timernotify/clock"
	"github.com/facebook/timernotify/timerfd"
)

func TestEvalAndValidate(t *testing.T) {
	c := &Config{
		Clock:          clock.Monotonic,
		InitialDelay:   -1 * time.Second,
		Interval:       -1 * time.Second,
		MonitoringPort: -1,
	}
	require.EqualError(t, c.EvalAndValidate(), "bad config: 'initialdelay' must be >=0")

	c.InitialDelay = 0
	require.EqualError(t, c.EvalAndValidate(), "bad config: 'interval' must be >=0")

	c.Interval = 0
	require.EqualError(t, c.EvalAndValidate(), "bad config: 'monitoringport' must be between 0 and 65535")

	c.MonitoringPort = 8080
	require.EqualError(t, c.EvalAndValidate(), "bad config: 'statsinterval' must be >0")

	c.StatsInterval = time.Second
	require.NoError(t, c.EvalAndValidate())

	c.Clock = clock.ID(1000)
	require.Error(t, c.EvalAndValidate())
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.EvalAndValidate())
	require.Equal(t, timerfd.Spec{InitialDelay: time.Second, Interval: time.Second}, c.Spec())
	require.Equal(t, clock.Monotonic, c.Clock)
	require.Equal(t, 0, c.MonitoringPort)
}

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timernotify.yaml")
	data := `clock: boottime
interval: 250ms
monitoringport: 4269
sdnotify: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	c, err := ReadConfig(path)
	require.NoError(t, err)
	want := DefaultConfig()
	want.Clock = clock.Boottime
	want.Interval = 250 * time.Millisecond
	want.MonitoringPort = 4269
	want.SDNotify = true
	require.Equal(t, want, c)
}

func TestReadConfigUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timernotify.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ringsize: 100\n"), 0644))
	_, err := ReadConfig(path)
	require.Error(t, err)
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
