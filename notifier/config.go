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
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/facebook/timernotify/clock"
	"github.com/facebook/timernotify/timerfd"
)

// Config represents configuration we expect to read from file
type Config struct {
	Clock          clock.ID      // clock the timer is based on
	InitialDelay   time.Duration // time until the first expiration
	Interval       time.Duration // period of expirations, 0 means fire once
	MonitoringPort int           // port to serve stats on, 0 means disabled
	StatsInterval  time.Duration // how often process stats are collected
	SDNotify       bool          // notify systemd about readiness and send watchdog pings on ticks
	CSVPath        string        // log every tick as CSV into this file
}

// DefaultConfig returns config firing every second after one second delay
func DefaultConfig() *Config {
	return &Config{
		Clock:         clock.Monotonic,
		InitialDelay:  time.Second,
		Interval:      time.Second,
		StatsInterval: 10 * time.Second,
	}
}

// EvalAndValidate makes sure config is valid
func (c *Config) EvalAndValidate() error {
	if c.InitialDelay < 0 {
		return fmt.Errorf("bad config: 'initialdelay' must be >=0")
	}
	if c.Interval < 0 {
		return fmt.Errorf("bad config: 'interval' must be >=0")
	}
	if c.MonitoringPort < 0 || c.MonitoringPort > 65535 {
		return fmt.Errorf("bad config: 'monitoringport' must be between 0 and 65535")
	}
	if c.MonitoringPort > 0 && c.StatsInterval <= 0 {
		return fmt.Errorf("bad config: 'statsinterval' must be >0")
	}
	if _, err := clock.Gettime(c.Clock); err != nil {
		return fmt.Errorf("bad config: 'clock': %w", err)
	}
	return nil
}

// Spec returns how the timer should be armed
func (c *Config) Spec() timerfd.Spec {
	return timerfd.Spec{
		InitialDelay: c.InitialDelay,
		Interval:     c.Interval,
	}
}

// ReadConfig reads config and unmarshals it from yaml into Config.
// Values missing in the file are taken from DefaultConfig.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	err = yaml.UnmarshalStrict(data, c)
	return c, err
}
