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
	"fmt"

	"github.com/jacobsa/vnode/clock"
	"github.com/jacobsa/vnode/internal/logger"
	"github.com/jacobsa/vnode/internal/vnode"
	"github.com/spf13/cobra"
)

var (
	mountFSIDMajor uint64
	mountFSIDMinor uint64
)

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Boot the subsystem, then register and populate a second mount",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		rootFSID := vnode.FSID{Major: Cfg.Mount.RootFSIDMajor, Minor: Cfg.Mount.RootFSIDMinor}
		s, err := vnode.VFSInit(ctx, Cfg, clock.RealClock{}, rootFSID,
			vnode.NoopNameCache{}, vnode.NoopBufferCache{}, vnode.NoopCredentialManager{})
		if err != nil {
			return err
		}

		mp := &vnode.Mount{FSID: vnode.FSID{Major: mountFSIDMajor, Minor: mountFSIDMinor}}
		s.VFSRegister(mp, nil)

		ops := vnode.NewMemOps()
		root, err := s.GetNewVnode(vnode.TagMem, mp, ops)
		if err != nil {
			return fmt.Errorf("getnewvnode: %w", err)
		}
		root.Type = vnode.TypeDirectory
		root.Flag |= vnode.FlagRoot

		logger.Infof("mounted %+v, root vnode id=%d", mp.FSID, root.ID)
		logger.Infof("%s", s.VPrint(root))

		if found := s.GetVFS(mp.FSID); found != mp {
			return fmt.Errorf("getvfs(%v) did not return the mount just registered", mp.FSID)
		}

		return nil
	},
}

func init() {
	mountCmd.Flags().Uint64Var(&mountFSIDMajor, "fsid-major", 9, "Major component of the mount's fsid.")
	mountCmd.Flags().Uint64Var(&mountFSIDMinor, "fsid-minor", 9, "Minor component of the mount's fsid.")
}
