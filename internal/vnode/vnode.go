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

import (
	"time"

	"github.com/jacobsa/fuse/fuseops"
)

// Vnode is the per-object state the core manages on behalf of every open
// file, directory, mount root, or device in the kernel.
//
// The classic BSD layer links the freelist and per-mount list through
// pointer-to-prev-slot fields (**v_freeb, **v_mountb) so a mid-list splice
// is branch-free at the head. Go's aliasing rules make that idiom awkward
// without unsafe.Pointer tricks, so every intrusive list here (freelist,
// per-mount list, alias chain) instead carries plain prev/next *Vnode
// fields plus a head/tail pointer on the owning structure; splicing out of
// the middle is still O(1), just expressed with an explicit prev pointer
// instead of a pointer to a pointer.
type Vnode struct {
	// ID identifies this vnode for diagnostics and upper-layer bookkeeping.
	// A recycled slot gets a fresh ID, never a reused one.
	ID fuseops.InodeID

	Type Type
	Tag  Tag
	Op   Ops
	Flag Flag

	// UseCount is incremented by vref and decremented by vrele; zero means
	// freelistable. Outside a critical section, UseCount == 0 holds exactly
	// when the vnode is on the freelist.
	UseCount int32

	// HoldCnt is incremented by vhold and decremented by holdrele; it does
	// not prevent freelist insertion and never goes negative.
	HoldCnt int32

	// Attrs is zeroed wholesale when the slot is recycled, so a stale
	// mode/uid/size from the previous occupant can never leak through.
	Attrs fuseops.InodeAttributes

	// Data is opaque per-filesystem private state, released by Ops.Reclaim.
	Data any

	// Mount linkage.
	Mount     *Mount
	mountPrev *Vnode
	mountNext *Vnode

	// Freelist linkage.
	inFreelist bool
	freePrev   *Vnode
	freeNext   *Vnode

	// Device-alias linkage. Rdev and Type together key the chain; a vnode
	// belongs to at most one chain, and only while Type.IsSpecial().
	Rdev      uint64
	spec      *specInfo
	bucket    *aliasBucket
	aliasPrev *Vnode
	aliasNext *Vnode

	// createdAt records when getnewvnode issued this slot, read from the
	// subsystem's injected clock. VPrint does not include it.
	createdAt time.Time
}

// specInfo is the per-special-device state a vnode in an alias chain owns.
// BSD MALLOCs and FREEs this block explicitly; here the garbage collector
// stands in for the allocator and there is no explicit free step.
type specInfo struct {
	rdev uint64
}

// Aliased reports whether FlagAliased is set.
func (v *Vnode) Aliased() bool { return v.Flag.Has(FlagAliased) }

// OnFreelist reports whether v is currently in the freelist.
func (v *Vnode) OnFreelist() bool { return v.inFreelist }

// IsDead reports whether vclean has already swapped in the dead op vector.
func (v *Vnode) IsDead() bool { return v.Op == DeadOps }
