// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import "golang.org/x/sys/unix"

// minFreelistCapacity bounds DefaultFreelistCapacity from below so that a
// constrained environment (a tiny RLIMIT_NOFILE) still leaves room for a few
// concurrent vnodes.
const minFreelistCapacity = 64

// maxDefaultFreelistCapacity bounds it from above so an unlimited rlimit
// doesn't translate into an enormous preallocation.
const maxDefaultFreelistCapacity = 1 << 16

// DefaultFreelistCapacity sizes the vnode table off the process's open-file
// rlimit: a process that can have more open files plausibly needs more
// concurrently-live vnodes.
func DefaultFreelistCapacity() int {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return minFreelistCapacity
	}

	// Compare in uint64: RLIM_INFINITY is the largest uint64 and would turn
	// negative if converted to int first.
	cur := rlimit.Cur
	switch {
	case cur < minFreelistCapacity:
		return minFreelistCapacity
	case cur > maxDefaultFreelistCapacity:
		return maxDefaultFreelistCapacity
	default:
		return int(cur)
	}
}
