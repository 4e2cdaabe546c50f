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

// Insmntque moves vp onto mp's vnode list, detaching it from whatever mount
// currently claims it. It is the sole legitimate mutator of a vnode's mount
// membership; a nil mp leaves vp detached.
func (s *Subsystem) Insmntque(vp *Vnode, mp *Mount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	insmntque(vp, mp)
}

// insmntque attaches vp to mp's vnode list, first detaching it from
// whatever mount (if any) currently claims it. Passing a nil mp just
// detaches vp, which getnewvnode relies on while a freshly recycled vnode
// is still ownerless.
func insmntque(vp *Vnode, mp *Mount) {
	if vp.Mount != nil {
		detachFromMount(vp)
	}
	vp.Mount = mp
	if mp == nil {
		return
	}
	vp.mountPrev = nil
	vp.mountNext = mp.vnodes
	if mp.vnodes != nil {
		mp.vnodes.mountPrev = vp
	}
	mp.vnodes = vp
}

// detachFromMount splices vp out of its current mount's list without
// changing vp.Mount; callers that are reassigning vp.Mount do that
// themselves.
func detachFromMount(vp *Vnode) {
	mp := vp.Mount
	if mp == nil {
		return
	}
	if vp.mountPrev != nil {
		vp.mountPrev.mountNext = vp.mountNext
	} else {
		mp.vnodes = vp.mountNext
	}
	if vp.mountNext != nil {
		vp.mountNext.mountPrev = vp.mountPrev
	}
	vp.mountPrev = nil
	vp.mountNext = nil
}

// eachVnode calls fn once for every vnode currently queued to mp, in
// head-to-tail order. fn must not queue or dequeue vnodes on mp while
// iterating; callers that need to mutate membership mid-walk (vflush) snapshot
// the list first instead of calling this helper.
func eachVnode(mp *Mount, fn func(vp *Vnode)) {
	vp := mp.vnodes
	for vp != nil {
		next := vp.mountNext
		fn(vp)
		vp = next
	}
}
