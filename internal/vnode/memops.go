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

// TagMem identifies vnodes backed by MemOps.
const TagMem Tag = "mem"

// MemOps is a minimal in-memory operation vector: a byte slice stands in
// for whatever a real filesystem would keep in Vnode.Data. It exists so the
// CLI and tests can mint vnodes that behave like a real filesystem's
// without depending on one.
//
// Lock and Unlock run under the subsystem lock, which already serializes
// them, so they only record the exclusive-lock bit rather than block on a
// mutex of their own. A blocking Lock here would deadlock the caller holding
// the subsystem lock.
type MemOps struct {
	data []byte
}

func NewMemOps() *MemOps {
	return &MemOps{}
}

func (m *MemOps) Lock(vp *Vnode) error {
	vp.Flag |= FlagExclusiveLock
	return nil
}

func (m *MemOps) Unlock(vp *Vnode) error {
	vp.Flag &^= FlagExclusiveLock
	return nil
}

func (m *MemOps) Inactive(vp *Vnode) error { return nil }

func (m *MemOps) Reclaim(vp *Vnode) error {
	m.data = nil
	return nil
}

func (m *MemOps) Close(vp *Vnode, flags int, cred Credentials) error { return nil }

func (m *MemOps) Print(vp *Vnode) string {
	return fmt.Sprintf("mem vnode id=%d bytes=%d", vp.ID, len(m.data))
}
