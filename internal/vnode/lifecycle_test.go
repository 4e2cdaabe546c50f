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

type LifecycleTest struct {
	suite.Suite

	ctx context.Context
	s   *Subsystem
	nc  *countingNameCache
	bc  *countingBufferCache
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleTest))
}

func (t *LifecycleTest) SetupTest() {
	t.ctx = context.Background()
	t.s, t.nc, t.bc, _ = newTestSubsystem(t.T(), 4)
}

func (t *LifecycleTest) allocate(ops Ops) *Vnode {
	vp, err := t.s.GetNewVnode(TagMem, t.s.Root(), ops)
	t.Require().NoError(err)
	return vp
}

func (t *LifecycleTest) TestFreelistExhaustion() {
	ops := &testOps{}

	var vnodes []*Vnode
	for i := 0; i < 4; i++ {
		vnodes = append(vnodes, t.allocate(ops))
	}

	_, err := t.s.GetNewVnode(TagMem, t.s.Root(), ops)
	t.Assert().ErrorIs(err, ErrTableFull)

	t.Require().NoError(t.s.Vrele(vnodes[2]))
	vp, err := t.s.GetNewVnode(TagMem, t.s.Root(), ops)
	t.Require().NoError(err)
	t.Assert().Same(vnodes[2], vp)
}

func (t *LifecycleTest) TestGetNewVnodeTakesInitialReference() {
	ops := &testOps{}

	vp := t.allocate(ops)

	t.Assert().EqualValues(1, vp.UseCount)
	t.Assert().Equal(TagMem, vp.Tag)
	t.Assert().Equal(TypeNone, vp.Type)
	t.Assert().False(vp.OnFreelist())
	t.Assert().Same(t.s.Root(), vp.Mount)
	t.Assert().Equal(1, t.nc.purges)
}

func (t *LifecycleTest) TestGetNewVnodeReclaimsRecycledSlot() {
	oldOps := &testOps{}
	vp := t.allocate(oldOps)
	t.Require().NoError(t.s.Vrele(vp))

	// Exhaust the remaining three bad slots so the next allocation is forced
	// onto the released, still-live one.
	filler := &testOps{}
	for i := 0; i < 3; i++ {
		t.allocate(filler)
	}

	newOps := &testOps{}
	got, err := t.s.GetNewVnode(Tag("other"), t.s.Root(), newOps)
	t.Require().NoError(err)

	t.Assert().Same(vp, got)
	t.Assert().Equal(1, oldOps.reclaims)
	t.Assert().Equal(Tag("other"), got.Tag)
	t.Assert().EqualValues(0, got.Rdev)
}

func (t *LifecycleTest) TestRefCountNetsToZero() {
	ops := &testOps{}
	vp := t.allocate(ops)

	t.s.Vref(vp)
	t.Require().NoError(t.s.Vget(t.ctx, vp, LockExclusive))
	t.Require().NoError(t.s.Vput(vp))
	t.Require().NoError(t.s.Vrele(vp))
	t.Assert().False(vp.OnFreelist())

	t.Require().NoError(t.s.Vrele(vp))

	t.Assert().EqualValues(0, vp.UseCount)
	t.Assert().True(vp.OnFreelist())
	t.Assert().Equal(1, ops.inactives)
	t.Assert().Equal(ops.locks, ops.unlocks)
}

func (t *LifecycleTest) TestVgetRevivesFreelistedVnode() {
	ops := &testOps{}
	vp := t.allocate(ops)
	t.Require().NoError(t.s.Vrele(vp))
	t.Require().True(vp.OnFreelist())

	t.Require().NoError(t.s.Vget(t.ctx, vp, LockExclusive))

	t.Assert().False(vp.OnFreelist())
	t.Assert().EqualValues(1, vp.UseCount)
}

func (t *LifecycleTest) TestVgetWithoutLockSkipsOpLock() {
	ops := &testOps{}
	vp := t.allocate(ops)
	locksBefore := ops.locks

	t.Require().NoError(t.s.Vget(t.ctx, vp, LockNone))

	t.Assert().Equal(locksBefore, ops.locks)
	t.Require().NoError(t.s.Vrele(vp))
}

func (t *LifecycleTest) TestVreleUnderflowPanics() {
	ops := &testOps{}
	vp := t.allocate(ops)
	t.Require().NoError(t.s.Vrele(vp))

	t.Assert().Panics(func() { _ = t.s.Vrele(vp) })
}

func (t *LifecycleTest) TestHoldCounts() {
	ops := &testOps{}
	vp := t.allocate(ops)

	t.s.Vhold(vp)
	t.s.Vhold(vp)
	t.Assert().EqualValues(2, vp.HoldCnt)

	t.s.Holdrele(vp)
	t.s.Holdrele(vp)
	t.Assert().EqualValues(0, vp.HoldCnt)

	t.Assert().Panics(func() { t.s.Holdrele(vp) })
}

func (t *LifecycleTest) TestHoldDoesNotPinAgainstFreelist() {
	ops := &testOps{}
	vp := t.allocate(ops)

	t.s.Vhold(vp)
	t.Require().NoError(t.s.Vrele(vp))

	t.Assert().True(vp.OnFreelist())
	t.Assert().EqualValues(1, vp.HoldCnt)
}

func (t *LifecycleTest) TestVgoneInstallsDeadOps() {
	ops := &testOps{}
	vp := t.allocate(ops)

	t.Require().NoError(t.s.Vgone(vp))

	t.Assert().Equal(TypeBad, vp.Type)
	t.Assert().True(vp.IsDead())
	t.Assert().Equal(TagNone, vp.Tag)
	t.Assert().Nil(vp.Mount)
	t.Assert().Equal(1, ops.reclaims)
	t.Assert().Equal(1, ops.closes)
	t.Assert().Equal(1, ops.inactives)
	t.Assert().Equal(1, t.bc.invalidations)

	// Property 4: late callers reach the dead vector and fail cleanly.
	t.Assert().ErrorIs(vp.Op.Lock(vp), ErrStale)
	t.Assert().ErrorIs(vp.Op.Inactive(vp), ErrStale)
}

func (t *LifecycleTest) TestVgoneIsIdempotent() {
	ops := &testOps{}
	vp := t.allocate(ops)

	t.Require().NoError(t.s.Vgone(vp))
	t.Require().NoError(t.s.Vgone(vp))

	t.Assert().Equal(TypeBad, vp.Type)
	t.Assert().Equal(1, ops.reclaims)
}

func (t *LifecycleTest) TestVgoneOnFreelistedVnodeMovesItToHead() {
	ops := &testOps{}
	first := t.allocate(ops)
	second := t.allocate(ops)
	t.Require().NoError(t.s.Vrele(first))
	t.Require().NoError(t.s.Vrele(second))

	// Both released vnodes sit behind the two still-unused bad slots, first
	// ahead of second; retiring second must jump it to the front of the
	// reuse order.
	t.Require().NoError(t.s.Vgone(second))

	vp, err := t.s.GetNewVnode(TagMem, t.s.Root(), ops)
	t.Require().NoError(err)
	t.Assert().Same(second, vp)
}

// Scenario: a teardown is in flight on vp; a second thread's vget must
// observe FlagXLock, sleep, and come back with ErrStale once the teardown
// completes, never handing vp to its caller.
func (t *LifecycleTest) TestVgetStaleDuringTeardown() {
	ops := &testOps{}
	vp := t.allocate(ops)

	t.s.mu.Lock()
	vp.Flag |= FlagXLock
	t.s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- t.s.Vget(t.ctx, vp, LockExclusive)
	}()

	// Wait for the sleeper to raise FlagXWant.
	for {
		t.s.mu.Lock()
		waiting := vp.Flag.Has(FlagXWant)
		t.s.mu.Unlock()
		if waiting {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// Complete the teardown the way vclean's final step does.
	t.s.mu.Lock()
	vp.Flag &^= FlagXLock | FlagXWant
	t.s.cond.Broadcast()
	t.s.mu.Unlock()

	t.Assert().ErrorIs(<-errCh, ErrStale)
	t.Assert().EqualValues(1, vp.UseCount)
}

func (t *LifecycleTest) TestInactiveRunsWithVnodeOnFreelist() {
	observed := make(chan bool, 1)
	ops := &observingOps{
		onInactive: func(vp *Vnode) {
			observed <- vp.OnFreelist()
		},
	}

	vp, err := t.s.GetNewVnode(TagMem, t.s.Root(), ops)
	t.Require().NoError(err)
	t.Require().NoError(t.s.Vrele(vp))

	t.Assert().True(<-observed)
}

// observingOps invokes a callback from Inactive so tests can assert on the
// vnode's state at the moment the filesystem sees it.
type observingOps struct {
	testOps
	onInactive func(vp *Vnode)
}

func (o *observingOps) Inactive(vp *Vnode) error {
	if o.onInactive != nil {
		o.onInactive(vp)
	}
	return o.testOps.Inactive(vp)
}
