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

import "context"

// BdevVP mints a block-special vnode naming rdev and runs it through
// CheckAlias, so a device already represented in core comes back as the
// canonical vnode.
func (s *Subsystem) BdevVP(ctx context.Context, rdev uint64) (*Vnode, error) {
	return s.specialVP(ctx, TypeBlockDevice, rdev)
}

// CdevVP is BdevVP's character-device counterpart.
func (s *Subsystem) CdevVP(ctx context.Context, rdev uint64) (*Vnode, error) {
	return s.specialVP(ctx, TypeCharDevice, rdev)
}

func (s *Subsystem) specialVP(ctx context.Context, typ Type, rdev uint64) (*Vnode, error) {
	nvp, err := s.GetNewVnode(TagNone, nil, GenericSpecOps)
	if err != nil {
		return nil, err
	}
	nvp.Type = typ
	nvp.Rdev = rdev

	return s.CheckAlias(ctx, nvp, rdev)
}
