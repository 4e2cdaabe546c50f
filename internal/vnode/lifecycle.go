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
	"context"
	"fmt"

	"github.com/jacobsa/fuse/fuseops"
)

// LockWant negotiates what kind of lock Vget should take on the vnode's
// op-vector once it has been promoted out of the freelist, the same
// flexibility BSD's vget gets from its LK_* flags argument.
type LockWant int

const (
	// LockExclusive asks Vget to call Op.Lock after promoting the vnode.
	LockExclusive LockWant = iota
	// LockNone asks Vget to promote the vnode without locking it.
	LockNone
)

// Vref increments usecount. The caller must already hold a reference (or be
// the code path that just produced the vnode via GetNewVnode/CheckAlias).
func (s *Subsystem) Vref(vp *Vnode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vp.UseCount++
}

// Vhold increments holdcnt (a soft reference from the buffer/page cache that
// does not pin the vnode against freelist insertion).
func (s *Subsystem) Vhold(vp *Vnode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vp.HoldCnt++
}

// Holdrele decrements holdcnt, trapping on underflow.
func (s *Subsystem) Holdrele(vp *Vnode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vp.HoldCnt <= 0 {
		s.fatal(fmt.Sprintf("holdrele: vnode %d holdcnt underflow", vp.ID))
		return
	}
	vp.HoldCnt--
}

// Vget promotes a freelisted or idle vnode to referenced state. If
// FlagXLock is set, it raises FlagXWant, sleeps once on the subsystem
// condition variable, and returns ErrStale: the vnode is no longer the
// object the caller expected, and the caller must re-resolve whatever named
// it. Otherwise it detaches vp from the freelist if necessary, increments
// usecount, and, if want is LockExclusive, calls the op-vector Lock.
func (s *Subsystem) Vget(ctx context.Context, vp *Vnode, want LockWant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vp.Flag.Has(FlagXLock) {
		vp.Flag |= FlagXWant
		s.cond.Wait()
		return ErrStale
	}

	if vp.OnFreelist() {
		s.free.detach(vp)
	}
	vp.UseCount++

	if want == LockExclusive {
		if err := vp.Op.Lock(vp); err != nil {
			return err
		}
	}
	return nil
}

// Vput calls the op-vector Unlock then Vrele.
func (s *Subsystem) Vput(vp *Vnode) error {
	s.mu.Lock()
	unlockErr := vp.Op.Unlock(vp)
	s.mu.Unlock()
	s.vrele(vp)
	return unlockErr
}

// Vrele decrements usecount, trapping on underflow; when the count reaches
// zero vp is appended to the freelist and Op.Inactive is invoked while vp is
// already sitting on the freelist. That ordering is safe: a concurrent Vget
// that adopts it will re-issue Lock against whatever state Inactive leaves
// behind.
func (s *Subsystem) Vrele(vp *Vnode) error {
	return s.vrele(vp)
}

func (s *Subsystem) vrele(vp *Vnode) error {
	s.mu.Lock()
	if vp.UseCount <= 0 {
		s.mu.Unlock()
		s.fatal(fmt.Sprintf("vrele: vnode %d usecount underflow", vp.ID))
		return nil
	}
	vp.UseCount--
	if vp.UseCount > 0 {
		s.mu.Unlock()
		return nil
	}
	s.free.release(vp)
	s.mu.Unlock()

	return vp.Op.Inactive(vp)
}

// GetNewVnode pops the freelist head (failing with ErrTableFull if empty),
// fully reclaims the popped slot if it was not already type=bad, resets
// scalar state, purges it from the name cache, then installs tag and ops,
// attaches it to mp, and takes the initial reference.
func (s *Subsystem) GetNewVnode(tag Tag, mp *Mount, ops Ops) (*Vnode, error) {
	s.mu.Lock()
	vp, err := s.free.popHead()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if vp.UseCount != 0 {
		s.mu.Unlock()
		s.fatal(fmt.Sprintf("getnewvnode: free vnode %d has usecount %d", vp.ID, vp.UseCount))
		return nil, newInvariantError("free vnode isn't")
	}
	wasBad := vp.Type == TypeBad
	s.mu.Unlock()

	if !wasBad {
		if err := s.vgoneLocking(vp); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vp.Type = TypeNone
	vp.Flag = 0
	vp.Rdev = 0
	vp.Attrs = fuseops.InodeAttributes{}
	vp.Data = nil
	vp.createdAt = s.clock.Now()

	s.nextID++
	vp.ID = fuseops.InodeID(s.nextID)

	if s.nameCache != nil {
		s.nameCache.Purge(vp)
	}

	vp.Tag = tag
	vp.Op = ops
	insmntque(vp, mp)
	vp.UseCount++

	return vp, nil
}

// CheckAlias establishes whether any other vnode already represents the
// special device nvp was minted for, and returns the vnode the caller
// should actually publish. rdev == 0 is NODEV: never a special device
// regardless of nvp.Type.
func (s *Subsystem) CheckAlias(ctx context.Context, nvp *Vnode, rdev uint64) (*Vnode, error) {
	if !nvp.Type.IsSpecial() || rdev == 0 {
		return nvp, nil
	}

	key := deviceKey{rdev: rdev, typ: nvp.Type}

	for {
		s.mu.Lock()
		match := s.aliases.firstOther(key, nvp)
		if match == nil {
			s.aliases.insert(nvp, rdev, nvp.Type)
			s.mu.Unlock()
			return nvp, nil
		}

		if match.Flag.Has(FlagXLock) {
			match.Flag |= FlagXWant
			s.cond.Wait()
			s.mu.Unlock()
			continue
		}

		if match.UseCount == 0 {
			s.mu.Unlock()
			if err := s.vgoneLocking(match); err != nil {
				return nil, err
			}
			continue
		}

		if match.Tag != TagNone {
			// Active match: nvp joins the chain as a second, independent
			// alias; both ends observe FlagAliased.
			s.aliases.insert(nvp, rdev, nvp.Type)
			nvp.Flag |= FlagAliased
			match.Flag |= FlagAliased
			s.mu.Unlock()
			return nvp, nil
		}

		// Unclaimed slot: take it over. The caller's reference moves from nvp
		// to the survivor. vclean it without flushing buffers (it was never
		// claimed, so there is nothing dirty), then copy nvp's identity onto
		// it and invalidate nvp.
		match.UseCount++
		s.mu.Unlock()
		if err := s.vcleanLocking(match, false); err != nil {
			return nil, err
		}
		s.mu.Lock()
		match.Op = nvp.Op
		match.Tag = nvp.Tag
		origMount := nvp.Mount
		nvp.Type = TypeNone
		insmntque(nvp, nil)
		if nvp.UseCount > 0 {
			nvp.UseCount--
		}
		if nvp.UseCount == 0 && !nvp.OnFreelist() {
			s.free.release(nvp)
		}
		insmntque(match, origMount)
		s.mu.Unlock()
		return match, nil
	}
}

// vcleanLocking acquires the lock around vclean's body; split out so
// CheckAlias and GetNewVnode can call it without already holding s.mu.
func (s *Subsystem) vcleanLocking(vp *Vnode, doclose bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vclean(vp, doclose)
}

// vclean is the detachment protocol: quiesce the vnode, swap in the dead
// op-vector, run close/inactive/reclaim against the vector that was in
// force, and wake anyone who blocked on the transition. Caller holds s.mu.
//
// Once FlagXLock is set there is no aborting: the op-vector swap and the
// callback sequence run to completion no matter which callbacks fail, so a
// waiter resumed from FlagXWant only ever observes the finished state (dead
// op-vector, tag cleared). The first callback error is reported after the
// fact.
func (s *Subsystem) vclean(vp *Vnode, doclose bool) error {
	wasActive := vp.UseCount > 0
	if wasActive {
		vp.UseCount++
	}

	if vp.Flag.Has(FlagXLock) {
		s.fatal(fmt.Sprintf("vclean: vnode %d already being cleaned", vp.ID))
		return newInvariantError("double vclean")
	}
	vp.Flag |= FlagXLock

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Serialize with any in-flight inactive before invalidating buffers.
	record(vp.Op.Lock(vp))
	if doclose && s.bufferCache != nil {
		record(s.bufferCache.Invalidate(vp, 0))
	}

	origOps := vp.Op
	vp.Op = DeadOps
	vp.Tag = TagNone

	record(origOps.Unlock(vp))
	if wasActive {
		if doclose {
			record(origOps.Close(vp, 0, nil))
		}
		record(origOps.Inactive(vp))
	}

	if err := origOps.Reclaim(vp); err != nil {
		s.fatal(fmt.Sprintf("vclean: vnode %d reclaim failed: %v", vp.ID, err))
		record(err)
	}

	if wasActive {
		// The extra reference taken in step 1 is released the same way any
		// other reference is: through vrele. Op is already dead by now, so
		// the Inactive call this implies is the dead vector's harmless
		// ErrStale rather than a second real inactivation.
		vp.UseCount--
		if vp.UseCount == 0 {
			s.free.release(vp)
			_ = vp.Op.Inactive(vp)
		}
	}

	vp.Flag &^= FlagXLock
	if vp.Flag.Has(FlagXWant) {
		vp.Flag &^= FlagXWant
		s.cond.Broadcast()
	}

	return firstErr
}

// vgoneLocking acquires the lock around vgone's body.
func (s *Subsystem) vgoneLocking(vp *Vnode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vgone(vp)
}

// Vgone fully retires vp: cleans it, detaches it from its mount and alias
// chain, re-types it bad, and prioritizes its slot for reuse. Exported so
// callers that already identified a vnode needing destruction (e.g. a
// forced unmount walk) can invoke it directly; internal call sites use the
// unexported vgone while already holding s.mu.
func (s *Subsystem) Vgone(vp *Vnode) error {
	return s.vgoneLocking(vp)
}

func (s *Subsystem) vgone(vp *Vnode) error {
	if vp.Flag.Has(FlagXLock) {
		vp.Flag |= FlagXWant
		s.cond.Wait()
		return nil
	}

	// An already-retired vnode has nothing left to tear down; repeated vgone
	// calls are a no-op once type is bad.
	if vp.Type == TypeBad {
		return nil
	}

	if err := s.vclean(vp, true); err != nil {
		return err
	}

	insmntque(vp, nil)

	if vp.Type.IsSpecial() {
		if vp.bucket == nil {
			s.fatal(fmt.Sprintf("vgone: special vnode %d missing from its own alias chain", vp.ID))
			return newInvariantError("missing alias entry")
		}
		key := deviceKey{rdev: vp.Rdev, typ: vp.Type}
		s.aliases.remove(vp)
		// A chain shrunk to a single survivor is no longer an alias set.
		if b := s.aliases.bucketFor(key); b != nil && b.chain != nil && b.chain.aliasNext == nil {
			b.chain.Flag &^= FlagAliased
		}
	}

	if vp.OnFreelist() {
		s.free.moveToHead(vp)
	}

	vp.Type = TypeBad
	return nil
}

// Vgoneall retires vp and every other vnode sharing its (rdev, type): it
// walks the alias chain retiring siblings until FlagAliased no longer
// holds, then retires vp itself.
func (s *Subsystem) Vgoneall(vp *Vnode) error {
	for {
		s.mu.Lock()
		if !vp.Aliased() {
			s.mu.Unlock()
			break
		}
		var sibling *Vnode
		eachAlias(vp, func(alias *Vnode) {
			if sibling == nil {
				sibling = alias
			}
		})
		s.mu.Unlock()
		if sibling == nil {
			break
		}
		if err := s.vgoneLocking(sibling); err != nil {
			return err
		}
	}
	return s.vgoneLocking(vp)
}
