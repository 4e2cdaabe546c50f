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

import "fmt"

// Credentials are owned by the upper kernel; the core only ever holds and
// frees them through a CredentialManager, never inspects their contents.
type Credentials any

// CredentialManager is the external collaborator for crhold/crfree,
// deliberately outside this package's scope.
type CredentialManager interface {
	Hold(c Credentials) Credentials
	Free(c Credentials)
}

// NameCache is the external collaborator for nchinit/cache_purge.
type NameCache interface {
	Init()
	Purge(vp *Vnode)
}

// BufferCache is the external collaborator for vinvalbuf.
type BufferCache interface {
	Invalidate(vp *Vnode, flags int) error
}

// Ops is the operation vector every vnode carries: the set of
// filesystem-provided callbacks the core invokes by name without knowing
// their implementation. The core swaps a vnode's Ops to DeadOps during
// vclean, which is the act that makes the vnode externally dead regardless
// of whether its memory has been recycled.
type Ops interface {
	// Lock serializes filesystem-level access to vp. Called by vget when the
	// caller asks for LockExclusive, and by vclean before tearing the vnode
	// down.
	Lock(vp *Vnode) error

	// Unlock is the inverse of Lock.
	Unlock(vp *Vnode) error

	// Inactive is called when usecount drops to zero. It runs with vp already
	// on the freelist; a concurrent vget that adopts vp re-issues Lock
	// against whatever state Inactive leaves behind.
	Inactive(vp *Vnode) error

	// Reclaim releases all filesystem-private state attached to vp. Called
	// exactly once per vnode lifetime, from vclean. A nonzero return is
	// fatal: there is no defined recovery path.
	Reclaim(vp *Vnode) error

	// Close is called once per doclose=true vclean on a vnode that was active
	// when torn down.
	Close(vp *Vnode, flags int, cred Credentials) error

	// Print renders a one-line diagnostic for vprint.
	Print(vp *Vnode) string
}

// deadOps is installed on every vnode reclaimed by vclean. Every method
// reports that the vnode is no longer usable, so late callers observe a
// clean failure instead of corruption -- the same contract
// fuseutil.NotImplementedFileSystem gives callers of an unimplemented FUSE
// op, just returning ErrStale instead of ENOSYS.
type deadOps struct{}

func (deadOps) Lock(vp *Vnode) error                               { return ErrStale }
func (deadOps) Unlock(vp *Vnode) error                             { return ErrStale }
func (deadOps) Inactive(vp *Vnode) error                           { return ErrStale }
func (deadOps) Reclaim(vp *Vnode) error                            { return ErrStale }
func (deadOps) Close(vp *Vnode, flags int, cred Credentials) error { return ErrStale }
func (deadOps) Print(vp *Vnode) string                             { return "dead vnode" }

// DeadOps is the dead dispatch table. It is a value type, not a pointer, so
// comparing vp.Op == DeadOps identifies a torn-down vnode without a type
// assertion.
var DeadOps Ops = deadOps{}

// genericSpecOps is the op vector vflush(force) installs on a special-device
// vnode that it has vclean'd but can't fully retire: the device may still
// have live holders, so it gets a detached, mount-agnostic vector instead of
// being destroyed.
type genericSpecOps struct{}

func (genericSpecOps) Lock(vp *Vnode) error                               { return nil }
func (genericSpecOps) Unlock(vp *Vnode) error                             { return nil }
func (genericSpecOps) Inactive(vp *Vnode) error                           { return nil }
func (genericSpecOps) Reclaim(vp *Vnode) error                            { return nil }
func (genericSpecOps) Close(vp *Vnode, flags int, cred Credentials) error { return nil }
func (genericSpecOps) Print(vp *Vnode) string {
	return fmt.Sprintf("orphaned special device rdev=%d type=%s", vp.Rdev, vp.Type)
}

// GenericSpecOps is the generic special-device op vector.
var GenericSpecOps Ops = genericSpecOps{}
