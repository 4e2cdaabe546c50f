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
	"errors"
	"testing"

	"github.com/jacobsa/vnode/cfg"
	"github.com/jacobsa/vnode/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// testOps is an op vector that records every call the core makes into the
// filesystem layer.
type testOps struct {
	locks, unlocks, inactives, reclaims, closes int

	reclaimErr error
}

func (o *testOps) Lock(vp *Vnode) error {
	o.locks++
	return nil
}

func (o *testOps) Unlock(vp *Vnode) error {
	o.unlocks++
	return nil
}

func (o *testOps) Inactive(vp *Vnode) error {
	o.inactives++
	return nil
}

func (o *testOps) Reclaim(vp *Vnode) error {
	o.reclaims++
	vp.Data = nil
	return o.reclaimErr
}

func (o *testOps) Close(vp *Vnode, flags int, cred Credentials) error {
	o.closes++
	return nil
}

func (o *testOps) Print(vp *Vnode) string { return "test vnode" }

type countingNameCache struct {
	inits, purges int
}

func (c *countingNameCache) Init()        { c.inits++ }
func (c *countingNameCache) Purge(*Vnode) { c.purges++ }

type countingBufferCache struct {
	invalidations int
}

func (c *countingBufferCache) Invalidate(*Vnode, int) error {
	c.invalidations++
	return nil
}

type countingCredManager struct {
	holds, frees int
}

func (c *countingCredManager) Hold(cr Credentials) Credentials {
	c.holds++
	return cr
}

func (c *countingCredManager) Free(Credentials) { c.frees++ }

// testConfig builds a deliberately tiny subsystem configuration so
// exhaustion and recycling are easy to drive. Invariant violations panic so
// tests can observe them without killing the process.
func testConfig(capacity int) cfg.Config {
	c := cfg.Default()
	c.Vnode.FreelistCapacity = capacity
	c.Vnode.AliasHashBuckets = 8
	c.Debug.ExitOnInvariantViolation = false
	return c
}

func newTestSubsystem(t *testing.T, capacity int) (*Subsystem, *countingNameCache, *countingBufferCache, *countingCredManager) {
	nc := &countingNameCache{}
	bc := &countingBufferCache{}
	cm := &countingCredManager{}

	s, err := VFSInit(
		context.Background(),
		testConfig(capacity),
		&clock.FakeClock{},
		FSID{Major: 1, Minor: 1},
		nc, bc, cm)
	require.NoError(t, err)

	return s, nc, bc, cm
}

type VFSInitTest struct {
	suite.Suite
}

func TestVFSInitSuite(t *testing.T) {
	suite.Run(t, new(VFSInitTest))
}

func (t *VFSInitTest) TestBuildsFreelistOfDeadSlots() {
	s, nc, _, _ := newTestSubsystem(t.T(), 4)

	assert.Equal(t.T(), 4, s.free.len())
	for vp := s.free.head; vp != nil; vp = vp.freeNext {
		assert.Equal(t.T(), TypeBad, vp.Type)
		assert.True(t.T(), vp.IsDead())
		assert.EqualValues(t.T(), 0, vp.UseCount)
	}

	assert.Equal(t.T(), 1, nc.inits)
}

func (t *VFSInitTest) TestRegistersRootMount() {
	s, _, _, _ := newTestSubsystem(t.T(), 4)

	root := s.Root()
	t.Require().NotNil(root)
	assert.Equal(t.T(), FSID{Major: 1, Minor: 1}, root.FSID)
	assert.Nil(t.T(), root.Cover)
	assert.Same(t.T(), root, s.GetVFS(FSID{Major: 1, Minor: 1}))
}

func (t *VFSInitTest) TestRunsFilesystemSwitchSkippingNilEntries() {
	var calls int
	hook := func(ctx context.Context) error {
		calls++
		return nil
	}

	_, err := VFSInit(
		context.Background(),
		testConfig(4),
		&clock.FakeClock{},
		FSID{Major: 1, Minor: 1},
		&countingNameCache{}, &countingBufferCache{}, &countingCredManager{},
		hook, nil, hook)
	t.Require().NoError(err)

	assert.Equal(t.T(), 2, calls)
}

func (t *VFSInitTest) TestFailingInitHookPropagates() {
	boom := errors.New("fs init failed")

	_, err := VFSInit(
		context.Background(),
		testConfig(4),
		&clock.FakeClock{},
		FSID{Major: 1, Minor: 1},
		&countingNameCache{}, &countingBufferCache{}, &countingCredManager{},
		func(ctx context.Context) error { return boom })

	assert.ErrorIs(t.T(), err, boom)
}
