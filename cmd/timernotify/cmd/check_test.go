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

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/facebook/timernotify/clock"
	"github.com/facebook/timernotify/notifier"
)

func init() {
	color.NoColor = true
}

func TestCheckAgainstThreshold(t *testing.T) {
	tests := []struct {
		testName      string
		value         time.Duration
		warnThreshold time.Duration
		failThreshold time.Duration
		wantStatus    status
		wantMsg       string
	}{
		{
			testName:      "below threshold",
			value:         time.Millisecond,
			warnThreshold: 2 * time.Millisecond,
			failThreshold: 10 * time.Millisecond,
			wantStatus:    OK,
			wantMsg:       "Jitter is 1ms, we expect it to be within 2ms",
		},
		{
			testName:      "warn threshold",
			value:         3 * time.Millisecond,
			warnThreshold: 2 * time.Millisecond,
			failThreshold: 10 * time.Millisecond,
			wantStatus:    WARN,
			wantMsg:       "Jitter is 3ms, we expect it to be within 2ms. Timer is late",
		},
		{
			testName:      "fail threshold",
			value:         11 * time.Millisecond,
			warnThreshold: 2 * time.Millisecond,
			failThreshold: 10 * time.Millisecond,
			wantStatus:    FAIL,
			wantMsg:       "Jitter is 11ms, we expect it to be within 2ms. Timer is late",
		},
	}
	for _, tt := range tests {
		t.Run(tt.testName, func(t *testing.T) {
			gotStatus, gotMsg := checkAgainstThreshold("Jitter", tt.value, tt.warnThreshold, tt.failThreshold, "Timer is late")
			require.Equal(t, tt.wantStatus, gotStatus)
			require.Equal(t, tt.wantMsg, gotMsg)
		})
	}
}

func TestCheckMeanInterval(t *testing.T) {
	m := &measurement{expected: 100 * time.Millisecond}
	st, _ := checkMeanInterval(m)
	require.Equal(t, FAIL, st)

	m.summary = notifier.Summary{Samples: 10, Mean: 100*time.Millisecond + 500*time.Microsecond}
	st, _ = checkMeanInterval(m)
	require.Equal(t, OK, st)

	m.summary.Mean = 95 * time.Millisecond
	st, msg := checkMeanInterval(m)
	require.Equal(t, WARN, st)
	require.Contains(t, msg, "5ms")

	m.summary.Mean = 150 * time.Millisecond
	st, _ = checkMeanInterval(m)
	require.Equal(t, FAIL, st)
}

func TestCheckJitter(t *testing.T) {
	m := &measurement{expected: 100 * time.Millisecond}
	m.summary.Stddev = time.Millisecond
	st, _ := checkJitter(m)
	require.Equal(t, OK, st)
	m.summary.Stddev = 10 * time.Millisecond
	st, _ = checkJitter(m)
	require.Equal(t, WARN, st)
	m.summary.Stddev = 30 * time.Millisecond
	st, _ = checkJitter(m)
	require.Equal(t, FAIL, st)
}

func TestCheckOverruns(t *testing.T) {
	m := &measurement{summary: notifier.Summary{Ticks: 20}}
	st, _ := checkOverruns(m)
	require.Equal(t, OK, st)
	m.summary.Overruns = 1
	st, _ = checkOverruns(m)
	require.Equal(t, WARN, st)
	m.summary.Overruns = 3
	st, _ = checkOverruns(m)
	require.Equal(t, FAIL, st)
}

func TestCheckCPU(t *testing.T) {
	st, msg := checkCPU(&measurement{cpuPercent: 0.123})
	require.Equal(t, OK, st)
	require.Equal(t, "CPU usage while waiting, % is 0.12, we expect it to be within 20", msg)
	st, _ = checkCPU(&measurement{cpuPercent: 99.5})
	require.Equal(t, FAIL, st)
}

func TestCheckClockFrequency(t *testing.T) {
	st, msg := checkClockFrequency(&measurement{freqErr: errors.New("nope")})
	require.Equal(t, WARN, st)
	require.Equal(t, "Unable to read frequency adjustment of realtime clock: nope", msg)
	st, _ = checkClockFrequency(&measurement{freqPPB: -1200.5})
	require.Equal(t, OK, st)
	st, _ = checkClockFrequency(&measurement{freqPPB: -200000})
	require.Equal(t, WARN, st)
	st, _ = checkClockFrequency(&measurement{freqPPB: 600000})
	require.Equal(t, FAIL, st)
}

func TestRunDiagnosers(t *testing.T) {
	var buf bytes.Buffer
	ok := func(*measurement) (status, string) { return OK, "fine" }
	warn := func(*measurement) (status, string) { return WARN, "meh" }
	fail := func(*measurement) (status, string) { return FAIL, "bad" }
	failed := runDiagnosers(&buf, &measurement{}, []diagnoser{ok, warn, fail})
	require.Equal(t, 2, failed)
	require.Equal(t, fmt.Sprintf("%s fine\n%s meh\n%s bad\n", okString, warnString, failString), buf.String())
}

func TestPrintTicks(t *testing.T) {
	var buf bytes.Buffer
	ticks := []*notifier.Tick{
		{Count: 1, At: time.Second, Since: 100 * time.Millisecond},
		{Count: 1, At: time.Second + 101*time.Millisecond, Since: 101 * time.Millisecond},
		{Count: 2, At: time.Second + 301*time.Millisecond, Since: 200 * time.Millisecond},
	}
	require.NoError(t, printTicks(&buf, 100*time.Millisecond, ticks))
	out := buf.String()
	require.Contains(t, out, "1.101s")
	require.Contains(t, out, "1ms")
	require.Contains(t, out, "1.301s")
	for i := 1; i <= 3; i++ {
		require.Contains(t, out, fmt.Sprintf(" %d ", i))
	}
}

func TestMeasure(t *testing.T) {
	m, ticks, err := measure(context.Background(), clock.Monotonic, 10*time.Millisecond, 5)
	require.NoError(t, err)
	require.Len(t, ticks, 5)
	require.Equal(t, 5, m.summary.Ticks)
	require.Equal(t, 4, m.summary.Samples)
	require.Equal(t, 10*time.Millisecond, m.expected)
	require.GreaterOrEqual(t, m.cpuPercent, 0.0)
}

func TestMeasureRejects(t *testing.T) {
	_, _, err := measure(context.Background(), clock.Monotonic, 10*time.Millisecond, 1)
	require.Error(t, err)
	_, _, err = measure(context.Background(), clock.Monotonic, 0, 5)
	require.Error(t, err)
	_, _, err = measure(context.Background(), clock.ID(1000), 10*time.Millisecond, 5)
	require.Error(t, err)
}

func TestMeasureCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := measure(ctx, clock.Monotonic, time.Hour, 5)
	require.ErrorIs(t, err, context.Canceled)
}
