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

// GetVFS walks the mount ring once looking for fsid.
func (s *Subsystem) GetVFS(fsid FSID) *Mount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounts.getvfs(fsid)
}

// VFSRegister splices mp into the mount ring just after the root and records
// cover as the directory vnode it sits on. A nil cover is accepted for any
// mount and is not checked against the root's.
func (s *Subsystem) VFSRegister(mp *Mount, cover *Vnode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mp.Cover = cover
	s.mounts.register(mp)
}

// VFSRemove splices mp out of the registry. Removing the root, or a mount
// still covered by another, is refused: the root case is a fatal invariant
// violation, the covered case returns ErrMountBusy.
func (s *Subsystem) VFSRemove(mp *Mount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.mounts.remove(mp)
	if err == nil {
		return nil
	}
	if _, ok := err.(*InvariantError); ok {
		s.fatal(err.Error())
		return err
	}
	return err
}

// VFSLock sets MountLocked on mp, waiting on MountWait if it is already
// set. Locking is not reentrant.
func (s *Subsystem) VFSLock(mp *Mount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for mp.Flag&MountLocked != 0 {
		mp.Flag |= MountWait
		s.cond.Wait()
	}
	mp.Flag |= MountLocked
}

// VFSUnlock clears MountLocked and wakes one waiter. Unlocking a mount that
// is not locked is a fatal invariant violation.
func (s *Subsystem) VFSUnlock(mp *Mount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mp.Flag&MountLocked == 0 {
		s.fatal("vfs_unlock: mount not locked")
		return
	}
	mp.Flag &^= MountLocked
	if mp.Flag&MountWait != 0 {
		mp.Flag &^= MountWait
		s.cond.Broadcast()
	}
}
