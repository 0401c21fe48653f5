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
	"time"

	"github.com/eclesh/welford"
)

// Summary describes ticks and intervals observed between them
type Summary struct {
	Ticks        int
	Expirations  uint64
	Overruns     int
	Samples      int           // number of measured intervals, the first tick is not one
	Mean         time.Duration // mean of measured intervals
	Stddev       time.Duration // standard deviation of measured intervals
	MaxDeviation time.Duration // largest absolute difference from expected interval
}

// intervalStats keeps running statistics of intervals between ticks.
// Time between arming and the first tick is the initial delay, so it's skipped.
type intervalStats struct {
	expected time.Duration
	w        *welford.Stats
	summary  Summary
}

func newIntervalStats(expected time.Duration) *intervalStats {
	return &intervalStats{expected: expected, w: welford.New()}
}

func (s *intervalStats) add(t *Tick) {
	first := s.summary.Ticks == 0
	s.summary.Ticks++
	s.summary.Expirations += t.Count
	if t.Overrun() {
		s.summary.Overruns++
	}
	if first || t.Count == 0 {
		return
	}
	// overrun tick covers several intervals
	perInterval := t.Since / time.Duration(t.Count)
	s.w.Add(float64(perInterval))
	s.summary.Samples++
	deviation := perInterval - s.expected
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > s.summary.MaxDeviation {
		s.summary.MaxDeviation = deviation
	}
	s.summary.Mean = time.Duration(s.w.Mean())
	if s.summary.Samples > 1 {
		s.summary.Stddev = time.Duration(s.w.Stddev())
	}
}

// Summarize calculates Summary of ticks observed by a timer with given interval.
// The first tick is expected to be the first one after arming.
func Summarize(expected time.Duration, ticks []*Tick) Summary {
	s := newIntervalStats(expected)
	for _, t := range ticks {
		s.add(t)
	}
	return s.summary
}
