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
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestLineReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLineReporter(&buf)
	require.NoError(t, r.Report(&Tick{Count: 1}))
	require.NoError(t, r.Report(&Tick{Count: 3}))
	require.Equal(t, "timers elapsed: 1\ntimers elapsed: 3\n", buf.String())
}

func TestCSVReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewCSVReporter(&buf)
	require.NoError(t, r.Report(&Tick{Count: 1, At: 2 * time.Second, Since: time.Second}))
	require.NoError(t, r.Report(&Tick{Count: 2, At: 4 * time.Second, Since: 2 * time.Second}))
	want := `count,clock_ns,since_ns
1,2000000000,1000000000
2,4000000000,2000000000
`
	require.Equal(t, want, buf.String())
}

func TestTickOverrun(t *testing.T) {
	require.False(t, (&Tick{Count: 1}).Overrun())
	require.True(t, (&Tick{Count: 2}).Overrun())
}

func TestMultiReporter(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := NewMockReporter(ctrl)
	second := NewMockReporter(ctrl)
	tick := &Tick{Count: 1}

	gomock.InOrder(
		first.EXPECT().Report(tick).Return(fmt.Errorf("disk full")),
		second.EXPECT().Report(tick).Return(nil),
	)
	err := MultiReporter{first, second}.Report(tick)
	require.EqualError(t, err, "disk full")
}

func TestReporterFunc(t *testing.T) {
	var got uint64
	r := ReporterFunc(func(t *Tick) error {
		got = t.Count
		return nil
	})
	require.NoError(t, r.Report(&Tick{Count: 7}))
	require.Equal(t, uint64(7), got)
}
