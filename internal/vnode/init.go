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

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/vnode/cfg"
	"github.com/jacobsa/vnode/clock"
)

// VFSInit boots a Subsystem: it preallocates cfg.Vnode.FreelistCapacity
// slots and threads them onto the freelist with the dead op-vector and
// type=bad already installed, creates the root mount, initializes the name
// cache, and walks the filesystem-switch table concurrently.
func VFSInit(ctx context.Context, c cfg.Config, clk clock.Clock, rootFSID FSID, nameCache NameCache, bufferCache BufferCache, credManager CredentialManager, fstypes ...FSTypeInit) (*Subsystem, error) {
	s := NewSubsystem(c, clk, nameCache, bufferCache, credManager)
	for _, f := range fstypes {
		s.RegisterFSType(f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < c.Vnode.FreelistCapacity; i++ {
		s.free.pushTail(&Vnode{
			Type: TypeBad,
			Op:   DeadOps,
		})
	}

	root := &Mount{FSID: rootFSID}
	s.mounts = newMountRegistry(root)

	if s.nameCache != nil {
		s.nameCache.Init()
	}

	if len(s.fsswitch) > 0 {
		b := syncutil.NewBundle(ctx)
		for _, initFn := range s.fsswitch {
			if initFn == nil {
				continue
			}
			fn := initFn
			b.Add(func(ctx context.Context) error {
				return fn(ctx)
			})
		}
		if err := b.Join(); err != nil {
			return nil, err
		}
	}

	return s, nil
}
