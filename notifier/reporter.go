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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Tick is what we observe every time the timer becomes readable
type Tick struct {
	// Count is number of intervals elapsed since the previous tick. >1 means we fell behind.
	Count uint64
	// At is reading of the timer's clock when the tick was observed
	At time.Duration
	// Since is time passed since the previous tick, or since the timer was armed
	Since time.Duration
}

// Overrun tells if consumer was too slow and missed some expirations
func (t *Tick) Overrun() bool {
	return t.Count > 1
}

//go:generate mockgen -source=reporter.go -destination=mock_reporter_test.go -package=notifier

// Reporter is something that consumes ticks
type Reporter interface {
	Report(*Tick) error
}

// ReporterFunc turns a function into Reporter
type ReporterFunc func(*Tick) error

// Report implements Reporter interface
func (f ReporterFunc) Report(t *Tick) error {
	return f(t)
}

// LineReporter prints number of elapsed intervals
type LineReporter struct {
	w io.Writer
}

// NewLineReporter returns new LineReporter
func NewLineReporter(w io.Writer) *LineReporter {
	return &LineReporter{w: w}
}

// Report implements Reporter interface
func (l *LineReporter) Report(t *Tick) error {
	_, err := fmt.Fprintf(l.w, "timers elapsed: %d\n", t.Count)
	return err
}

var header = []string{
	"count",
	"clock_ns",
	"since_ns",
}

// CSVRecords returns all data from this tick as CSV. Must by synced with `header` variable.
func (t *Tick) CSVRecords() []string {
	return []string{
		strconv.FormatUint(t.Count, 10),
		strconv.FormatInt(int64(t.At), 10),
		strconv.FormatInt(int64(t.Since), 10),
	}
}

// CSVReporter logs ticks as CSV into given writer
type CSVReporter struct {
	csvwriter     *csv.Writer
	printedHeader bool
}

// NewCSVReporter returns new CSVReporter
func NewCSVReporter(w io.Writer) *CSVReporter {
	return &CSVReporter{
		csvwriter: csv.NewWriter(w),
	}
}

// Report implements Reporter interface
func (l *CSVReporter) Report(t *Tick) error {
	if !l.printedHeader {
		if err := l.csvwriter.Write(header); err != nil {
			return err
		}
		l.printedHeader = true
	}
	if err := l.csvwriter.Write(t.CSVRecords()); err != nil {
		return err
	}
	l.csvwriter.Flush()
	return l.csvwriter.Error()
}

// MultiReporter reports to all reporters, in order
type MultiReporter []Reporter

// Report implements Reporter interface
func (m MultiReporter) Report(t *Tick) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
