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
Package hostendian provides way to check the endianness of the
machine this code is running on.

Kernel counters such as the expiration count of a timerfd or the value of an
eventfd are exchanged as 8 bytes in host byte order, so we need to know it to
decode them.
*/
package hostendian

import (
	"encoding/binary"
	"unsafe"
)

// CounterSize is the size of a kernel counter read from timerfd or eventfd
const CounterSize = 8

// Order of the bytes
var Order binary.ByteOrder = binary.LittleEndian

// IsBigEndian is a flag determining if value is in Big Endian
var IsBigEndian bool

func init() {
	var i uint16 = 0x0100
	ptr := unsafe.Pointer(&i)
	if *(*byte)(ptr) == 0x01 {
		// we are on the big endian machine
		IsBigEndian = true
		Order = binary.BigEndian
	}
}

// Counter decodes kernel counter from buffer
func Counter(b [CounterSize]byte) uint64 {
	return Order.Uint64(b[:])
}

// CounterBytes encodes value as kernel counter, ready to be written to eventfd
func CounterBytes(v uint64) [CounterSize]byte {
	var b [CounterSize]byte
	Order.PutUint64(b[:], v)
	return b
}
