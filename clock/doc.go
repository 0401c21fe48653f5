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
Package clock names the kernel clocks a timer can be based on and reads them.

Supported methods include
  - mapping clock names from flags and config files to clock ids through ParseID
  - reading a clock through Gettime, which calls CLOCK_GETTIME syscall
  - reading the frequency correction currently applied to a clock through FrequencyPPB,
    which calls CLOCK_ADJTIME syscall without modifying anything.

CLOCK_MONOTONIC is not affected by steps of the system clock, but it is slewed
together with CLOCK_REALTIME. FrequencyPPB lets tools explain small deviations of
observed timer intervals from the configured ones.
*/
package clock
