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
	"sync"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/vnode/cfg"
	"github.com/jacobsa/vnode/clock"
	"github.com/jacobsa/vnode/internal/logger"
)

// FSTypeInit is the per-filesystem-type boot hook invoked by VFSInit. A nil
// entry in the switch table is skipped.
type FSTypeInit func(ctx context.Context) error

// Subsystem owns every piece of state BSD scatters across the
// vfreeh/vfreet/rootfs/speclisth/vfssw globals, guarded by a single lock so
// the invariants in checkInvariants hold at every release point. Grouping
// it in one value lets tests stand up independent instances.
type Subsystem struct {
	mu syncutil.InvariantMutex

	// cond stands in for the kernel's sleep/wakeup. vfs_lock and checkalias
	// block on it and re-check their condition on wake; vget and vgone sleep
	// on it once and then return (vget with ErrStale).
	cond *sync.Cond

	free     *freelist
	mounts   *mountRegistry
	aliases  *aliasTable
	fsswitch []FSTypeInit

	nameCache   NameCache
	bufferCache BufferCache
	credManager CredentialManager

	clock clock.Clock
	cfg   cfg.Config

	nextID uint64
}

// checkInvariants is wired into syncutil.NewInvariantMutex and runs at every
// lock transition when invariant checking is enabled. It traps the moment
// structural state goes bad rather than let corruption propagate.
func (s *Subsystem) checkInvariants() {
	// Before VFSInit has installed the root mount the subsystem is still
	// being assembled; there is nothing to check yet.
	if s.mounts == nil {
		return
	}

	if s.free.len() < 0 {
		s.fatal("freelist length negative")
	}
	for vp := s.free.head; vp != nil; vp = vp.freeNext {
		if vp.UseCount != 0 {
			s.fatal(fmt.Sprintf("vnode %d on freelist with usecount %d", vp.ID, vp.UseCount))
		}
	}

	var liveMounts int
	s.mounts.each(func(mp *Mount) {
		liveMounts++
		eachVnode(mp, func(vp *Vnode) {
			if vp.Mount != mp {
				s.fatal(fmt.Sprintf("vnode %d queued on mount it does not point back to", vp.ID))
			}
			if vp.HoldCnt < 0 {
				s.fatal(fmt.Sprintf("vnode %d has negative holdcnt", vp.ID))
			}
			if vp.Type == TypeBad && vp.Op != DeadOps {
				s.fatal(fmt.Sprintf("vnode %d is type=bad but op vector is not dead", vp.ID))
			}
		})
	})
	if liveMounts == 0 {
		s.fatal("mount registry is empty; root anchor missing")
	}
}

// fatal reports an invariant violation per DebugConfig.ExitOnInvariantViolation:
// either a structured fatal log followed by exit, or a panic carrying the
// InvariantError.
func (s *Subsystem) fatal(msg string) {
	err := newInvariantError(msg)
	if s.cfg.Debug.ExitOnInvariantViolation {
		logger.Fatalf("%s", err.Error())
		return
	}
	panic(err)
}

// NewSubsystem constructs a Subsystem without running VFSInit; tests that
// want to exercise a single component in isolation call this directly and
// seed whatever state they need. Production callers use VFSInit.
func NewSubsystem(c cfg.Config, clk clock.Clock, nameCache NameCache, bufferCache BufferCache, credManager CredentialManager) *Subsystem {
	s := &Subsystem{
		free:        newFreelist(),
		aliases:     newAliasTable(c.Vnode.AliasHashBuckets),
		nameCache:   nameCache,
		bufferCache: bufferCache,
		credManager: credManager,
		clock:       clk,
		cfg:         c,
	}
	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)
	s.cond = sync.NewCond(&s.mu)
	return s
}

// RegisterFSType appends an init hook to the filesystem-switch table; VFSInit
// calls every non-nil entry, running them concurrently.
func (s *Subsystem) RegisterFSType(init FSTypeInit) {
	s.fsswitch = append(s.fsswitch, init)
}

// Root returns the root mount, the anchor of the registry.
func (s *Subsystem) Root() *Mount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounts.root
}
