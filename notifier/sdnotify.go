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

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
)

// SDNotifier tells systemd about service state over NOTIFY_SOCKET.
// It does nothing when disabled or when not running under systemd.
type SDNotifier struct {
	enabled bool
}

// NewSDNotifier returns new SDNotifier
func NewSDNotifier(enabled bool) *SDNotifier {
	return &SDNotifier{enabled: enabled}
}

func (s *SDNotifier) notify(state string) error {
	if !s.enabled {
		return nil
	}
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return fmt.Errorf("sd_notify %q: %w", state, err)
	}
	if !sent {
		log.Debugf("NOTIFY_SOCKET is not set, %q was not sent", state)
	}
	return nil
}

// Ready tells systemd the timer is armed
func (s *SDNotifier) Ready() error {
	return s.notify(daemon.SdNotifyReady)
}

// Stopping tells systemd we are shutting down
func (s *SDNotifier) Stopping() error {
	return s.notify(daemon.SdNotifyStopping)
}

// Report implements Reporter interface, every tick is a watchdog keep-alive
func (s *SDNotifier) Report(_ *Tick) error {
	return s.notify(daemon.SdNotifyWatchdog)
}
