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
	"fmt"
	"strings"

	"github.com/jacobsa/vnode/common"
	"github.com/jacobsa/vnode/internal/logger"
)

// FlushFlag controls vflush's handling of in-use vnodes.
type FlushFlag uint32

const (
	// FlushForce tears down even in-use vnodes instead of reporting them busy.
	FlushForce FlushFlag = 1 << iota
)

// Vflush sweeps every vnode queued to mp, skipping skipvp.
// An idle vnode is retired outright. An in-use vnode is retired too when
// flags carries FlushForce -- special devices instead get vclean'd and
// reassigned to GenericSpecOps, detached from any mount, since the device
// may still have live holders elsewhere. Without FlushForce an in-use vnode
// is simply counted busy. Returns ErrBusy if any vnode was counted busy.
func (s *Subsystem) Vflush(mp *Mount, skipvp *Vnode, flags FlushFlag) error {
	var busy bool

	// eachVnode's documented contract forbids mutating membership while
	// iterating; vflush relies on detaching every vnode it handles, so it
	// snapshots the list into a work queue first and drains that.
	s.mu.Lock()
	victims := common.NewLinkedListQueue[*Vnode]()
	for vp := mp.vnodes; vp != nil; vp = vp.mountNext {
		if vp == skipvp {
			continue
		}
		victims.Push(vp)
	}
	s.mu.Unlock()

	for !victims.IsEmpty() {
		vp := victims.Pop()

		s.mu.Lock()
		idle := vp.UseCount == 0
		special := vp.Type.IsSpecial()
		s.mu.Unlock()

		switch {
		case idle:
			if err := s.vgoneLocking(vp); err != nil {
				return err
			}
		case flags&FlushForce != 0:
			if special {
				// The device may still have live holders elsewhere, so the
				// vnode survives as an orphan: cleaned, reassigned to the
				// generic special-device vector, and detached from any mount.
				if err := s.vcleanLocking(vp, true); err != nil {
					return err
				}
				s.mu.Lock()
				vp.Op = GenericSpecOps
				insmntque(vp, nil)
				s.mu.Unlock()
			} else {
				if err := s.vgoneLocking(vp); err != nil {
					return err
				}
			}
		default:
			busy = true
			logger.Infof("vflush: %s", s.VPrint(vp))
		}
	}

	if busy {
		return ErrBusy
	}
	return nil
}

// Vfinddev scans the alias hash bucket for (dev, typ) and returns the first
// matching vnode, or nil.
func (s *Subsystem) Vfinddev(dev uint64, typ Type) *Vnode {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.aliases.bucketFor(deviceKey{rdev: dev, typ: typ})
	if b == nil {
		return nil
	}
	return b.chain
}

// Vcount sums usecount across vp's alias chain for special devices; for a
// non-aliased vnode it is simply vp.UseCount. A zero-count sibling found
// during the scan is garbage-collected via Vgone and the scan restarted.
func (s *Subsystem) Vcount(vp *Vnode) (int32, error) {
	if !vp.Aliased() {
		s.mu.Lock()
		defer s.mu.Unlock()
		return vp.UseCount, nil
	}

restart:
	s.mu.Lock()
	var zero *Vnode
	var total int32
	for p := vp.bucket.chain; p != nil; p = p.aliasNext {
		if p.UseCount == 0 && p != vp {
			zero = p
			break
		}
		total += p.UseCount
	}
	s.mu.Unlock()

	if zero != nil {
		if err := s.vgoneLocking(zero); err != nil {
			return 0, err
		}
		goto restart
	}

	return total, nil
}

// VPrint renders a one-line diagnostic for vp -- tag, type, usecount,
// holdcnt, and flag mnemonics, in that order -- and writes it through the
// logger.
func (s *Subsystem) VPrint(vp *Vnode) string {
	var flags []string
	if vp.Flag.Has(FlagRoot) {
		flags = append(flags, "VROOT")
	}
	if vp.Flag.Has(FlagText) {
		flags = append(flags, "VTEXT")
	}
	if vp.Flag.Has(FlagXLock) {
		flags = append(flags, "VXLOCK")
	}
	if vp.Flag.Has(FlagXWant) {
		flags = append(flags, "VXWANT")
	}
	if vp.Flag.Has(FlagAliased) {
		flags = append(flags, "VALIASED")
	}

	line := fmt.Sprintf("tag=%s type=%s usecount=%d holdcnt=%d flags=%s %s",
		vp.Tag, vp.Type, vp.UseCount, vp.HoldCnt, strings.Join(flags, ","),
		vp.Op.Print(vp))
	logger.Infof("%s", line)
	return line
}
