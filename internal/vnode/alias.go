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

// deviceKey identifies one device-alias chain: every vnode naming the same
// block or character device, regardless of which filesystem it was looked up
// through, shares one chain.
type deviceKey struct {
	rdev uint64
	typ  Type
}

// aliasBucket is the hash bucket for one deviceKey: a chain of vnodes that
// all alias the same device, linked through Vnode.aliasPrev/aliasNext. The
// bucket itself is the chain head; it is deleted from the table once its
// chain empties.
type aliasBucket struct {
	key   deviceKey
	chain *Vnode
}

// aliasTable is the device-alias hash table. BSD hashes rdev into a
// fixed-size array of chain heads; this keeps the same chain-of-equal
// semantics with a Go map keyed directly on the (rdev, type) pair, since
// Go's map avoids the need to size or rehash a bucket array by hand. The
// configured bucket count survives as the map's initial size hint.
type aliasTable struct {
	buckets map[deviceKey]*aliasBucket
}

func newAliasTable(sizeHint int) *aliasTable {
	return &aliasTable{buckets: make(map[deviceKey]*aliasBucket, sizeHint)}
}

func (t *aliasTable) bucketFor(key deviceKey) *aliasBucket {
	return t.buckets[key]
}

// insert adds vp to the front of the chain for key, creating the bucket if
// necessary. FlagAliased is the caller's business: CheckAlias sets it on both
// ends only once a chain actually reaches length two.
func (t *aliasTable) insert(vp *Vnode, rdev uint64, typ Type) {
	key := deviceKey{rdev: rdev, typ: typ}
	b := t.buckets[key]
	if b == nil {
		b = &aliasBucket{key: key}
		t.buckets[key] = b
	}
	vp.Rdev = rdev
	vp.spec = &specInfo{rdev: rdev}
	vp.bucket = b
	vp.aliasPrev = nil
	vp.aliasNext = b.chain
	if b.chain != nil {
		b.chain.aliasPrev = vp
	}
	b.chain = vp
}

// remove splices vp out of its alias chain, deleting the bucket if the chain
// becomes empty, and clears FlagAliased. No-op if vp is not chained.
func (t *aliasTable) remove(vp *Vnode) {
	if vp.bucket == nil {
		return
	}
	b := vp.bucket
	if vp.aliasPrev != nil {
		vp.aliasPrev.aliasNext = vp.aliasNext
	} else if b != nil {
		b.chain = vp.aliasNext
	}
	if vp.aliasNext != nil {
		vp.aliasNext.aliasPrev = vp.aliasPrev
	}
	vp.aliasPrev = nil
	vp.aliasNext = nil
	vp.bucket = nil
	vp.spec = nil
	vp.Flag &^= FlagAliased
	if b != nil && b.chain == nil {
		delete(t.buckets, b.key)
	}
}

// eachAlias calls fn for every other vnode in vp's chain (not vp itself).
func eachAlias(vp *Vnode, fn func(alias *Vnode)) {
	if vp.bucket == nil {
		return
	}
	for p := vp.bucket.chain; p != nil; {
		next := p.aliasNext
		if p != vp {
			fn(p)
		}
		p = next
	}
}

// firstOther returns the first chain member for key other than nvp, or nil.
// CheckAlias (lifecycle.go) drives its search loop on top of this, since
// the race-handling steps (vgone a zero-count match, block on an XLOCKed
// one) need the lifecycle engine this table deliberately does not depend
// on.
func (t *aliasTable) firstOther(key deviceKey, nvp *Vnode) *Vnode {
	b := t.buckets[key]
	if b == nil {
		return nil
	}
	for vp := b.chain; vp != nil; vp = vp.aliasNext {
		if vp != nvp {
			return vp
		}
	}
	return nil
}
