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

// MountFlag is a bitset of per-mount status bits.
type MountFlag uint32

const (
	// MountLocked means some thread holds the mount's advisory lock.
	MountLocked MountFlag = 1 << iota

	// MountWait means some other thread is waiting for MountLocked to clear.
	MountWait
)

// Mount represents one mounted filesystem. Mounts form a non-empty
// circular list anchored at the root filesystem.
type Mount struct {
	FSID FSID
	Flag MountFlag

	// Cover is the directory vnode in the parent filesystem this mount sits
	// on top of. Nil for the root mount. VFSRegister also accepts a nil Cover
	// for other mounts; nothing enforces that the root is the only uncovered
	// mount.
	Cover *Vnode

	ringPrev *Mount
	ringNext *Mount

	// vnodes is the head of the per-mount vnode list.
	vnodes *Vnode
}

// mountRegistry is the circular list of mounted filesystems, anchored at the
// root. It is never empty once vfsinit has run.
type mountRegistry struct {
	root *Mount
}

func newMountRegistry(root *Mount) *mountRegistry {
	root.ringPrev = root
	root.ringNext = root
	return &mountRegistry{root: root}
}

// register splices mp into the ring just after the root.
func (r *mountRegistry) register(mp *Mount) {
	mp.ringNext = r.root.ringNext
	mp.ringPrev = r.root
	r.root.ringNext.ringPrev = mp
	r.root.ringNext = mp
}

// getvfs walks the ring once looking for fsid, returning nil if not found.
func (r *mountRegistry) getvfs(fsid FSID) *Mount {
	mp := r.root
	for {
		if mp.FSID == fsid {
			return mp
		}
		mp = mp.ringNext
		if mp == r.root {
			return nil
		}
	}
}

// coveredBy reports whether some other registered mount is mounted on top of
// one of mp's own vnodes: such an mp is load-bearing and must not be
// removed.
func (r *mountRegistry) coveredBy(mp *Mount) bool {
	covered := false
	r.each(func(other *Mount) {
		if other == mp || other.Cover == nil {
			return
		}
		if other.Cover.Mount == mp {
			covered = true
		}
	})
	return covered
}

// remove splices mp out of the ring. Removing the root is a fatal invariant
// violation: exactly one mount may have no coverage, and it is never
// unmounted out from under the filesystems mounted on top of it.
func (r *mountRegistry) remove(mp *Mount) error {
	if mp == r.root {
		return newInvariantError("vfs_remove: attempt to remove the root mount")
	}
	if r.coveredBy(mp) {
		return ErrMountBusy
	}
	mp.ringPrev.ringNext = mp.ringNext
	mp.ringNext.ringPrev = mp.ringPrev
	mp.ringPrev = nil
	mp.ringNext = nil
	return nil
}

// each calls fn once per mount in ring order starting at the root.
func (r *mountRegistry) each(fn func(mp *Mount)) {
	mp := r.root
	for {
		next := mp.ringNext
		fn(mp)
		if next == r.root {
			return
		}
		mp = next
	}
}
