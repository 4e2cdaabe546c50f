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

import "github.com/jacobsa/fuse/fuseutil"

// Direction is the I/O direction a name-lookup context scratch buffer is
// set up for.
type Direction int

const (
	DirectionRead Direction = iota
	DirectionWrite
)

// IOVec is the scratch I/O slot a lookup context carries for writing out a
// name: one direntry plus the direction of the transfer.
type IOVec struct {
	Dirent *fuseutil.Dirent
	Dir    Direction
}

// NameLookupContext carries the vnode references and credentials a name
// resolution walk accumulates. Every reference the context holds
// contributes to the target vnode's usecount; Dup and Release must stay
// symmetric so a context can be cloned and discarded without leaking a
// reference.
type NameLookupContext struct {
	CurDir  *Vnode
	RootDir *Vnode
	Cred    Credentials
	Dir     Direction

	// Dirent is the embedded direntry scratch NDInit points IOVec at.
	Dirent fuseutil.Dirent
	IOVec  IOVec
}

// NDInit zero-clears ctx and presets its I/O vector to point at the embedded
// direntry for a write-out of a name in the given direction.
func (s *Subsystem) NDInit(ctx *NameLookupContext, dir Direction) {
	*ctx = NameLookupContext{Dir: dir}
	ctx.IOVec = IOVec{Dirent: &ctx.Dirent, Dir: dir}
}

// NDDup clones src into dst: the current-dir vnode is Vref'd, the root-dir
// vnode (if any) is Vref'd, and credentials are held via the
// CredentialManager. Every successful dup is matched by exactly one
// NDRelease regardless of intervening errors.
func (s *Subsystem) NDDup(src, dst *NameLookupContext) {
	*dst = *src
	dst.IOVec = IOVec{Dirent: &dst.Dirent, Dir: dst.Dir}

	if dst.CurDir != nil {
		s.Vref(dst.CurDir)
	}
	if dst.RootDir != nil {
		s.Vref(dst.RootDir)
	}
	if s.credManager != nil && dst.Cred != nil {
		dst.Cred = s.credManager.Hold(dst.Cred)
	}
}

// NDRelease releases every reference ctx holds, symmetric with NDDup.
func (s *Subsystem) NDRelease(ctx *NameLookupContext) error {
	var firstErr error

	if ctx.CurDir != nil {
		if err := s.Vrele(ctx.CurDir); err != nil && firstErr == nil {
			firstErr = err
		}
		ctx.CurDir = nil
	}
	if ctx.RootDir != nil {
		if err := s.Vrele(ctx.RootDir); err != nil && firstErr == nil {
			firstErr = err
		}
		ctx.RootDir = nil
	}
	if s.credManager != nil && ctx.Cred != nil {
		s.credManager.Free(ctx.Cred)
		ctx.Cred = nil
	}

	return firstErr
}
