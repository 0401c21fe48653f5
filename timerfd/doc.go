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

/*
Package timerfd wraps the Linux primitives a periodic timer notifier is built from.

  - Timer owns a timerfd(2): a clock that becomes readable when it expires and
    reports how many intervals elapsed since the last read.
  - Registry owns an epoll(7) instance: a set of file descriptors with interest
    masks we can block on until any of them becomes ready.
  - Waker owns an eventfd(2) which can be registered next to timers to interrupt
    a blocked Wait from another goroutine.

All kernel objects are created non-blocking and close-on-exec, and must be
released with Close.
*/
package timerfd
