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
	"testing"

	"github.com/stretchr/testify/suite"
)

type LookupTest struct {
	suite.Suite

	s  *Subsystem
	cm *countingCredManager
}

func TestLookupSuite(t *testing.T) {
	suite.Run(t, new(LookupTest))
}

func (t *LookupTest) SetupTest() {
	t.s, _, _, t.cm = newTestSubsystem(t.T(), 8)
}

func (t *LookupTest) TestNDInitPresetsIOVec() {
	var ctx NameLookupContext
	ctx.CurDir = &Vnode{} // must be cleared

	t.s.NDInit(&ctx, DirectionWrite)

	t.Assert().Nil(ctx.CurDir)
	t.Assert().Nil(ctx.RootDir)
	t.Assert().Equal(DirectionWrite, ctx.Dir)
	t.Assert().Same(&ctx.Dirent, ctx.IOVec.Dirent)
	t.Assert().Equal(DirectionWrite, ctx.IOVec.Dir)
}

// Round-trip law: a dup'd context balances vref and credential holds exactly
// when released.
func (t *LookupTest) TestNDDupAndReleaseBalance() {
	ops := &testOps{}
	cur, err := t.s.GetNewVnode(TagMem, t.s.Root(), ops)
	t.Require().NoError(err)
	root, err := t.s.GetNewVnode(TagMem, t.s.Root(), ops)
	t.Require().NoError(err)

	var src NameLookupContext
	t.s.NDInit(&src, DirectionRead)
	src.CurDir = cur
	src.RootDir = root
	src.Cred = "cred"

	var dst NameLookupContext
	t.s.NDDup(&src, &dst)

	t.Assert().EqualValues(2, cur.UseCount)
	t.Assert().EqualValues(2, root.UseCount)
	t.Assert().Equal(1, t.cm.holds)
	t.Assert().Same(&dst.Dirent, dst.IOVec.Dirent)

	t.Require().NoError(t.s.NDRelease(&dst))

	t.Assert().EqualValues(1, cur.UseCount)
	t.Assert().EqualValues(1, root.UseCount)
	t.Assert().Equal(1, t.cm.frees)
	t.Assert().Nil(dst.CurDir)
	t.Assert().Nil(dst.Cred)
}

func (t *LookupTest) TestNDDupWithoutRootDirOrCred() {
	ops := &testOps{}
	cur, err := t.s.GetNewVnode(TagMem, t.s.Root(), ops)
	t.Require().NoError(err)

	var src NameLookupContext
	t.s.NDInit(&src, DirectionRead)
	src.CurDir = cur

	var dst NameLookupContext
	t.s.NDDup(&src, &dst)
	t.Assert().EqualValues(2, cur.UseCount)
	t.Assert().Equal(0, t.cm.holds)

	t.Require().NoError(t.s.NDRelease(&dst))
	t.Assert().EqualValues(1, cur.UseCount)
	t.Assert().Equal(0, t.cm.frees)
}
