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
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/constraints"

	"github.com/facebook/timernotify/clock"
	"github.com/facebook/timernotify/notifier"
	"github.com/facebook/timernotify/stats"
)

// flags
var (
	checkClockFlag    = clock.Monotonic
	checkIntervalFlag time.Duration
	checkCountFlag    int
)

type status int

// possible check results
const (
	OK status = iota
	WARN
	FAIL
)

var okString = color.GreenString("[ OK ]")
var warnString = color.YellowString("[WARN]")
var failString = color.RedString("[FAIL]")

var statusToColor = []string{okString, warnString, failString}

// measurement is everything we learn from one check run
type measurement struct {
	expected   time.Duration
	summary    notifier.Summary
	cpuPercent float64
	freqPPB    float64
	freqErr    error
}

// diagnoser is function that does checks on measurement
type diagnoser func(m *measurement) (status, string)

var diagnosers = []diagnoser{
	checkMeanInterval,
	checkJitter,
	checkOverruns,
	checkCPU,
	checkClockFrequency,
}

func fmtThreshold(warnThreshold any) string {
	return color.BlueString("%v", warnThreshold)
}

// generic function to check value against some thresholds
func checkAgainstThreshold[T constraints.Ordered](name string, value, warnThreshold, failThreshold T, explanation string) (status, string) {
	msgTemplate := "%s is %s, we expect it to be within %s%s"
	thresholdStr := fmtThreshold(warnThreshold)

	if value > failThreshold {
		return FAIL, fmt.Sprintf(msgTemplate, name, color.RedString("%v", value), thresholdStr, ". "+explanation)
	}
	if value > warnThreshold {
		return WARN, fmt.Sprintf(msgTemplate, name, color.YellowString("%v", value), thresholdStr, ". "+explanation)
	}
	return OK, fmt.Sprintf(msgTemplate, name, color.GreenString("%v", value), thresholdStr, "")
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func checkMeanInterval(m *measurement) (status, string) {
	if m.summary.Samples == 0 {
		return FAIL, "No intervals were measured, we need at least two ticks"
	}
	return checkAgainstThreshold(
		"Deviation of mean interval",
		absDuration(m.summary.Mean-m.expected),
		m.expected/100,
		m.expected/10,
		"Timer expirations are expected to be spaced by the configured interval",
	)
}

func checkJitter(m *measurement) (status, string) {
	return checkAgainstThreshold(
		"Interval standard deviation",
		m.summary.Stddev,
		m.expected/20,
		m.expected/4,
		"High jitter usually means the host is overloaded or the process is throttled",
	)
}

func checkOverruns(m *measurement) (status, string) {
	return checkAgainstThreshold(
		"Number of overruns",
		m.summary.Overruns,
		0,
		m.summary.Ticks/10,
		"Overrun means more than one interval passed between wakeups",
	)
}

func checkCPU(m *measurement) (status, string) {
	return checkAgainstThreshold(
		"CPU usage while waiting, %",
		math.Round(m.cpuPercent*100)/100,
		20.0,
		80.0,
		"Waiting for the timer should not burn CPU",
	)
}

func checkClockFrequency(m *measurement) (status, string) {
	if m.freqErr != nil {
		return WARN, fmt.Sprintf("Unable to read frequency adjustment of %s clock: %v", clock.Realtime, m.freqErr)
	}
	return checkAgainstThreshold(
		"System clock frequency adjustment, PPB",
		math.Abs(m.freqPPB),
		100000.0,
		500000.0,
		"Large adjustment makes intervals on realtime clock drift from monotonic ones",
	)
}

func runDiagnosers(w io.Writer, m *measurement, toRun []diagnoser) int {
	failed := 0
	for _, check := range toRun {
		status, msg := check(m)
		if status != OK {
			failed++
		}
		fmt.Fprintf(w, "%s %s\n", statusToColor[status], msg)
	}
	return failed
}

func printTicks(w io.Writer, expected time.Duration, ticks []*notifier.Tick) error {
	table := tablewriter.NewWriter(w)
	table.Header("tick", "count", "clock", "since previous", "deviation")
	for i, t := range ticks {
		deviation := ""
		// first tick measures initial delay
		if i > 0 {
			deviation = (t.Since/time.Duration(t.Count) - expected).String()
		}
		if err := table.Append([]string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", t.Count),
			t.At.String(),
			t.Since.String(),
			deviation,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func measure(ctx context.Context, clk clock.ID, interval time.Duration, count int) (*measurement, []*notifier.Tick, error) {
	if count < 2 {
		return nil, nil, fmt.Errorf("need at least 2 ticks, got %d", count)
	}
	if interval <= 0 {
		return nil, nil, fmt.Errorf("interval must be positive, got %v", interval)
	}
	cfg := notifier.DefaultConfig()
	cfg.Clock = clk
	cfg.InitialDelay = interval
	cfg.Interval = interval
	if err := cfg.EvalAndValidate(); err != nil {
		return nil, nil, err
	}
	n, err := notifier.New(cfg, stats.NewStats())
	if err != nil {
		return nil, nil, err
	}
	defer n.Close()

	sys, err := stats.NewSysStats()
	if err != nil {
		return nil, nil, err
	}
	// first call sets the baseline
	if _, err := sys.CPUPercent(); err != nil {
		return nil, nil, err
	}
	if err := n.Start(); err != nil {
		return nil, nil, err
	}
	ticks, err := n.Collect(ctx, count)
	if err != nil {
		return nil, nil, err
	}
	cpu, err := sys.CPUPercent()
	if err != nil {
		return nil, nil, err
	}
	m := &measurement{
		expected:   interval,
		summary:    n.Summary(),
		cpuPercent: cpu,
	}
	m.freqPPB, _, m.freqErr = clock.FrequencyPPB(clock.Realtime)
	return m, ticks, nil
}

func init() {
	RootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Var(&checkClockFlag, "clock", "clock the timer is based on: monotonic, boottime or realtime")
	checkCmd.Flags().DurationVarP(&checkIntervalFlag, "interval", "i", 100*time.Millisecond, "timer interval")
	checkCmd.Flags().IntVarP(&checkCountFlag, "count", "c", 20, "number of ticks to collect")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Measure timer accuracy on this host, report in human-readable form.",
	Long: `Measure timer accuracy on this host, report in human-readable form.
Collects ticks of a periodic timer, prints them and runs a set of checks against the results.
Exit code will be equal to number of failed checks.`,
	Args: cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		m, ticks, err := measure(ctx, checkClockFlag, checkIntervalFlag, checkCountFlag)
		if err != nil {
			log.Fatal(err)
		}
		if err := printTicks(os.Stdout, checkIntervalFlag, ticks); err != nil {
			log.Fatal(err)
		}
		exitCode := runDiagnosers(os.Stdout, m, diagnosers)
		stop()
		os.Exit(exitCode)
	},
}
