// Copyright 2024 Google Inc. All Rights Reserved.
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

package cmd

import (
	"context"

	"github.com/jacobsa/vnode/clock"
	"github.com/jacobsa/vnode/internal/logger"
	"github.com/jacobsa/vnode/internal/vnode"
	"github.com/spf13/cobra"
)

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Run vfsinit and report the resulting subsystem state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		rootFSID := vnode.FSID{Major: Cfg.Mount.RootFSIDMajor, Minor: Cfg.Mount.RootFSIDMinor}
		s, err := vnode.VFSInit(ctx, Cfg, clock.RealClock{}, rootFSID,
			vnode.NoopNameCache{}, vnode.NoopBufferCache{}, vnode.NoopCredentialManager{})
		if err != nil {
			return err
		}

		logger.Infof("vfsinit complete: freelist-capacity=%d alias-hash-buckets=%d root-fsid=%v",
			Cfg.Vnode.FreelistCapacity, Cfg.Vnode.AliasHashBuckets, rootFSID)
		logger.Infof("root mount registered: %+v", s.Root().FSID)

		return nil
	},
}
