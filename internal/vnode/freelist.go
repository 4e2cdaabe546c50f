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

// freelist is the doubly-linked LRU of unused (UseCount == 0) vnodes.
// Vnodes are pushed to the tail on release and popped from the head on
// allocation, except that vgone moves a reclaimed vnode to the head so
// freshly-invalidated slots are reused first.
type freelist struct {
	head, tail *Vnode
	count      int
}

func newFreelist() *freelist {
	return &freelist{}
}

func (f *freelist) len() int { return f.count }

// pushHead inserts v at the front of the list. v must not already be on it.
func (f *freelist) pushHead(v *Vnode) {
	if v.inFreelist {
		panic("vnode already on freelist")
	}
	v.freePrev = nil
	v.freeNext = f.head
	if f.head != nil {
		f.head.freePrev = v
	} else {
		f.tail = v
	}
	f.head = v
	v.inFreelist = true
	f.count++
}

// pushTail inserts v at the back of the list. v must not already be on it.
func (f *freelist) pushTail(v *Vnode) {
	if v.inFreelist {
		panic("vnode already on freelist")
	}
	v.freeNext = nil
	v.freePrev = f.tail
	if f.tail != nil {
		f.tail.freeNext = v
	} else {
		f.head = v
	}
	f.tail = v
	v.inFreelist = true
	f.count++
}

// release implements vrele's freelist insertion: head insert when the list
// is empty, tail append otherwise. The two are indistinguishable for an
// empty list, but BSD's vrele spells both branches out, so the case is kept
// explicit here rather than left as an accident of the list code.
func (f *freelist) release(v *Vnode) {
	if f.head == nil {
		f.pushHead(v)
		return
	}
	f.pushTail(v)
}

// popHead removes and returns the least-recently-released vnode, or
// ErrTableFull if the list is empty.
func (f *freelist) popHead() (*Vnode, error) {
	if f.head == nil {
		return nil, ErrTableFull
	}
	v := f.head
	f.detach(v)
	return v, nil
}

// moveToHead detaches v if necessary and reinserts it at the head, used by
// vgone to prioritize reclaimed slots for reuse.
func (f *freelist) moveToHead(v *Vnode) {
	if v.inFreelist {
		f.detach(v)
	}
	f.pushHead(v)
}

// detach removes v from the list if it is on it. Used by vget when a
// freelisted vnode is revived.
func (f *freelist) detach(v *Vnode) {
	if !v.inFreelist {
		return
	}
	if v.freePrev != nil {
		v.freePrev.freeNext = v.freeNext
	} else {
		f.head = v.freeNext
	}
	if v.freeNext != nil {
		v.freeNext.freePrev = v.freePrev
	} else {
		f.tail = v.freePrev
	}
	v.freePrev = nil
	v.freeNext = nil
	v.inFreelist = false
	f.count--
}
