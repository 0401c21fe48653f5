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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/facebook/timernotify/clock"
	"github.com/facebook/timernotify/notifier"
	"github.com/facebook/timernotify/realtime"
	"github.com/facebook/timernotify/stats"
	"github.com/facebook/timernotify/timerfd"
)

// flags
var (
	runClockFlag          = clock.Monotonic
	runDelayFlag          time.Duration
	runIntervalFlag       time.Duration
	runCfgFlag            string
	runMonitoringPortFlag int
	runStatsIntervalFlag  time.Duration
	runSDNotifyFlag       bool
	runCSVPathFlag        string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Arm a periodic timer and print number of elapsed intervals every time it fires",
	Long: `Arm a periodic timer and print number of elapsed intervals every time it fires.
Prints "timers elapsed: N" for every wakeup, N above 1 means some expirations were coalesced.
Runs until interrupted, exit code is 1 if the timer can't be set up.`,
	Args: cobra.NoArgs,
	RunE: runRunE,
}

func init() {
	RootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

func addRunFlags(c *cobra.Command) {
	d := notifier.DefaultConfig()
	f := c.Flags()
	f.DurationVar(&runDelayFlag, "delay", d.InitialDelay, "time until the first expiration")
	f.DurationVar(&runIntervalFlag, "interval", d.Interval, "period of expirations, 0 fires once")
	f.Var(&runClockFlag, "clock", "clock the timer is based on: monotonic, boottime or realtime")
	f.StringVar(&runCfgFlag, "cfg", "", "Path to config")
	f.IntVar(&runMonitoringPortFlag, "monitoringport", d.MonitoringPort, "Port to run monitoring server on. 0 means disabled")
	f.DurationVar(&runStatsIntervalFlag, "statsinterval", d.StatsInterval, "Interval at which process stats are collected when monitoring is on")
	f.BoolVar(&runSDNotifyFlag, "sdnotify", d.SDNotify, "Notify systemd about readiness, send watchdog ping on every tick")
	f.StringVar(&runCSVPathFlag, "csvpath", d.CSVPath, "write CSV log of ticks into this file")
}

func runRunE(_ *cobra.Command, _ []string) error {
	ConfigureVerbosity()
	log.SetReportCaller(true)

	cfg, err := runConfig()
	if err != nil {
		log.Error(err)
		return errors.New("could not start timer")
	}
	log.Debugf("Config: %+v", *cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runNotifier(ctx, cfg)
}

func runConfig() (*notifier.Config, error) {
	cfg := &notifier.Config{
		Clock:          runClockFlag,
		InitialDelay:   runDelayFlag,
		Interval:       runIntervalFlag,
		MonitoringPort: runMonitoringPortFlag,
		StatsInterval:  runStatsIntervalFlag,
		SDNotify:       runSDNotifyFlag,
		CSVPath:        runCSVPathFlag,
	}
	if runCfgFlag != "" {
		log.Warningf("using config from %s, flag values are ignored", runCfgFlag)
		var err error
		cfg, err = notifier.ReadConfig(runCfgFlag)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.EvalAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// startupError turns a setup failure into the message we print before exiting
func startupError(err error) error {
	var cerr *timerfd.CreationError
	if errors.As(err, &cerr) {
		switch cerr.Resource {
		case timerfd.ResourceTimer:
			return errors.New("failed to create timer fd")
		case timerfd.ResourceRegistry:
			return errors.New("failed to create epoll fd")
		default:
			return fmt.Errorf("failed to create %s", cerr.Resource)
		}
	}
	return errors.New("could not start timer")
}

func runNotifier(ctx context.Context, cfg *notifier.Config) error {
	st := stats.NewJSONStats()
	n, err := notifier.New(cfg, st)
	if err != nil {
		log.Error(err)
		return startupError(err)
	}
	defer func() {
		if err := n.Close(); err != nil {
			log.Warningf("closing notifier: %v", err)
		}
	}()

	reporters := notifier.MultiReporter{notifier.NewLineReporter(os.Stdout)}
	if cfg.CSVPath != "" {
		f, err := os.Create(cfg.CSVPath)
		if err != nil {
			return err
		}
		defer f.Close()
		reporters = append(reporters, notifier.NewCSVReporter(f))
	}
	sd := notifier.NewSDNotifier(cfg.SDNotify)
	reporters = append(reporters, sd)

	if err := n.Start(); err != nil {
		log.Error(err)
		return startupError(err)
	}
	if err := sd.Ready(); err != nil {
		log.Warningf("notifying systemd: %v", err)
	}
	defer func() {
		if err := sd.Stopping(); err != nil {
			log.Warningf("notifying systemd: %v", err)
		}
	}()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return n.Run(ctx, reporters)
	})
	if cfg.MonitoringPort > 0 {
		eg.Go(func() error {
			return st.Start(ctx, cfg.MonitoringPort)
		})
		eg.Go(func() error {
			return collectSysStats(ctx, st, cfg.StatsInterval)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	log.Info("shutting down")
	return nil
}

// collectSysStats periodically exports process stats along with the notifier counters
func collectSysStats(ctx context.Context, st *stats.JSONStats, interval time.Duration) error {
	sys, err := stats.NewSysStats()
	if err != nil {
		return err
	}
	ticker, err := realtime.Default().NewTicker(interval)
	if err != nil {
		return err
	}
	defer ticker.Stop()
	for {
		m, err := sys.CollectRuntimeStats()
		if err != nil {
			log.Warningf("collecting process stats: %v", err)
		} else {
			st.SetCounters("", m)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
