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
	"errors"
	"fmt"
)

// Resources we may fail to create
const (
	ResourceTimer    = "timerfd"
	ResourceRegistry = "epoll"
	ResourceWaker    = "eventfd"
)

var (
	// ErrWouldBlock is returned when reading a timer which hasn't expired since the last read
	ErrWouldBlock = errors.New("timer has not expired")
	// ErrClosed is returned when using already closed object
	ErrClosed = errors.New("already closed")
	// ErrAlreadyRegistered is returned when registering the same source twice
	ErrAlreadyRegistered = errors.New("source is already registered")
	// ErrNotRegistered is returned when modifying or removing unknown source
	ErrNotRegistered = errors.New("source is not registered")
)

// CreationError means kernel object could not be allocated, for example due to fd exhaustion
type CreationError struct {
	Resource string
	Err      error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("failed to create %s: %v", e.Resource, e.Err)
}

// Unwrap returns underlying error
func (e *CreationError) Unwrap() error {
	return e.Err
}

// ConfigError means timer could not be armed
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("could not %s timer: %v", e.Op, e.Err)
}

// Unwrap returns underlying error
func (e *ConfigError) Unwrap() error {
	return e.Err
}
