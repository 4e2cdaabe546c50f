// Copyright 2015 Google Inc. All Rights Reserved.
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

package vnode

import "errors"

// Recoverable errors. These are returned, never panicked.
var (
	// ErrTableFull is returned by getnewvnode when the freelist is empty.
	// Callers may retry after releasing other vnodes, or surface ENFILE to
	// user space.
	ErrTableFull = errors.New("vnode: table full")

	// ErrStale is returned by vget (and by every method of DeadOps) when the
	// caller slept on a vnode's XLOCK and must not use the vnode further; the
	// caller should re-resolve whatever named it.
	ErrStale = errors.New("vnode: stale vnode reference")

	// ErrBusy is returned by vflush when it encountered an in-use vnode and
	// was not told to force the issue; unmount should surface this as EBUSY.
	ErrBusy = errors.New("vnode: busy")

	// ErrMountBusy is returned by vfs_remove when another registered mount
	// still sits on top of a vnode belonging to the mount being removed.
	ErrMountBusy = errors.New("vnode: mount busy")
)

// InvariantError wraps a fatal invariant violation: freelist underflow,
// unlocking an unlocked mount, recycling a vnode with nonzero usecount,
// double vclean, a missing alias entry, a failed reclaim, or a reference
// underflow. Subsystem.fatal decides whether this is panicked or logged and
// os.Exit'd, per DebugConfig.ExitOnInvariantViolation.
type InvariantError struct {
	msg string
}

func (e *InvariantError) Error() string { return "vnode: invariant violation: " + e.msg }

func newInvariantError(msg string) *InvariantError {
	return &InvariantError{msg: msg}
}
