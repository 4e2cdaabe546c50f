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
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MountTest struct {
	suite.Suite

	ctx context.Context
	s   *Subsystem
	m0  *Mount
	m1  *Mount
}

func TestMountSuite(t *testing.T) {
	suite.Run(t, new(MountTest))
}

func (t *MountTest) SetupTest() {
	t.ctx = context.Background()
	t.s, _, _, _ = newTestSubsystem(t.T(), 8)

	t.m0 = &Mount{FSID: FSID{Major: 7, Minor: 7}}
	t.m1 = &Mount{FSID: FSID{Major: 9, Minor: 9}}
	t.s.VFSRegister(t.m0, nil)
	t.s.VFSRegister(t.m1, nil)
}

// mountList returns the vnodes currently queued to mp, head first.
func (t *MountTest) mountList(mp *Mount) []*Vnode {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []*Vnode
	for vp := mp.vnodes; vp != nil; vp = vp.mountNext {
		out = append(out, vp)
	}
	return out
}

// Scenario: lookup by fsid, removal, and the root-removal panic.
func (t *MountTest) TestGetVFSAndRemove() {
	t.Assert().Same(t.m1, t.s.GetVFS(FSID{Major: 9, Minor: 9}))

	t.Require().NoError(t.s.VFSRemove(t.m1))
	t.Assert().Nil(t.s.GetVFS(FSID{Major: 9, Minor: 9}))
	t.Assert().Same(t.m0, t.s.GetVFS(FSID{Major: 7, Minor: 7}))

	t.Assert().Panics(func() { _ = t.s.VFSRemove(t.s.Root()) })
}

func (t *MountTest) TestVFSRemoveRefusedWhileCovered() {
	ops := &testOps{}
	dir, err := t.s.GetNewVnode(TagMem, t.m0, ops)
	t.Require().NoError(err)
	dir.Type = TypeDirectory

	// m1 sits on top of a directory belonging to m0, so m0 is load-bearing.
	t.s.mu.Lock()
	t.m1.Cover = dir
	t.s.mu.Unlock()

	t.Assert().ErrorIs(t.s.VFSRemove(t.m0), ErrMountBusy)
}

func (t *MountTest) TestVFSLockBlocksSecondLocker() {
	t.s.VFSLock(t.m0)

	acquired := make(chan struct{})
	go func() {
		t.s.VFSLock(t.m0)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.FailNow("second VFSLock acquired while mount was locked")
	case <-time.After(10 * time.Millisecond):
	}

	t.s.VFSUnlock(t.m0)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.FailNow("second VFSLock never acquired after unlock")
	}
	t.s.VFSUnlock(t.m0)
}

func (t *MountTest) TestVFSUnlockOfUnlockedMountPanics() {
	t.Assert().Panics(func() { t.s.VFSUnlock(t.m0) })
}

// Round-trip law: moving a vnode from A to B leaves it on B exactly once and
// never on A.
func (t *MountTest) TestInsmntqueMovesBetweenMounts() {
	ops := &testOps{}
	vp, err := t.s.GetNewVnode(TagMem, t.m0, ops)
	t.Require().NoError(err)
	t.Require().Equal([]*Vnode{vp}, t.mountList(t.m0))

	t.s.Insmntque(vp, t.m1)

	t.Assert().Empty(t.mountList(t.m0))
	t.Assert().Equal([]*Vnode{vp}, t.mountList(t.m1))
	t.Assert().Same(t.m1, vp.Mount)
}

func (t *MountTest) TestInsmntqueNilDetaches() {
	ops := &testOps{}
	vp, err := t.s.GetNewVnode(TagMem, t.m0, ops)
	t.Require().NoError(err)

	t.s.Insmntque(vp, nil)

	t.Assert().Empty(t.mountList(t.m0))
	t.Assert().Nil(vp.Mount)
}

func (t *MountTest) TestVflushRetiresIdleVnodes() {
	ops := &testOps{}
	for i := 0; i < 3; i++ {
		vp, err := t.s.GetNewVnode(TagMem, t.m1, ops)
		t.Require().NoError(err)
		t.Require().NoError(t.s.Vrele(vp))
	}

	t.Require().NoError(t.s.Vflush(t.m1, nil, 0))

	t.Assert().Empty(t.mountList(t.m1))
	t.Assert().Equal(3, ops.reclaims)
}

func (t *MountTest) TestVflushBusyWithoutForce() {
	ops := &testOps{}
	vp, err := t.s.GetNewVnode(TagMem, t.m1, ops)
	t.Require().NoError(err)

	t.Assert().ErrorIs(t.s.Vflush(t.m1, nil, 0), ErrBusy)
	t.Assert().Equal([]*Vnode{vp}, t.mountList(t.m1))
	t.Assert().NotEqual(TypeBad, vp.Type)
}

func (t *MountTest) TestVflushSkipsSkipVnode() {
	ops := &testOps{}
	keep, err := t.s.GetNewVnode(TagMem, t.m1, ops)
	t.Require().NoError(err)
	drop, err := t.s.GetNewVnode(TagMem, t.m1, ops)
	t.Require().NoError(err)
	t.Require().NoError(t.s.Vrele(drop))

	t.Require().NoError(t.s.Vflush(t.m1, keep, 0))

	t.Assert().Equal([]*Vnode{keep}, t.mountList(t.m1))
}

// Scenario: forced unmount with an active device. The block-special vnode
// survives as an orphan on the generic vector with its references intact;
// the regular file is destroyed outright.
func (t *MountTest) TestVflushForceWithActiveDevice() {
	vb, err := t.s.BdevVP(t.ctx, 0x0202)
	t.Require().NoError(err)
	t.s.Insmntque(vb, t.m1)
	vb.Tag = Tag("ufs")
	t.s.Vref(vb)
	t.s.Vref(vb) // usecount 3

	ops := &testOps{}
	vr, err := t.s.GetNewVnode(TagMem, t.m1, ops)
	t.Require().NoError(err)
	vr.Type = TypeRegular

	t.Require().NoError(t.s.Vflush(t.m1, nil, FlushForce))

	t.Assert().Empty(t.mountList(t.m1))

	t.Assert().Equal(GenericSpecOps, vb.Op)
	t.Assert().Nil(vb.Mount)
	t.Assert().EqualValues(3, vb.UseCount)
	t.Assert().Equal(TypeBlockDevice, vb.Type)

	t.Assert().Equal(TypeBad, vr.Type)
	t.Assert().Equal(1, ops.reclaims)
}
