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

var flushForce bool

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Demonstrate vflush tearing down a mount with an active device vnode",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		rootFSID := vnode.FSID{Major: Cfg.Mount.RootFSIDMajor, Minor: Cfg.Mount.RootFSIDMinor}
		s, err := vnode.VFSInit(ctx, Cfg, clock.RealClock{}, rootFSID,
			vnode.NoopNameCache{}, vnode.NoopBufferCache{}, vnode.NoopCredentialManager{})
		if err != nil {
			return err
		}

		mp := &vnode.Mount{FSID: vnode.FSID{Major: 9, Minor: 9}}
		s.VFSRegister(mp, nil)

		vb, err := s.BdevVP(ctx, 0x0202)
		if err != nil {
			return fmt.Errorf("bdevvp: %w", err)
		}
		s.Insmntque(vb, mp)
		s.Vref(vb)
		s.Vref(vb)

		ops := vnode.NewMemOps()
		vr, err := s.GetNewVnode(vnode.TagMem, mp, ops)
		if err != nil {
			return fmt.Errorf("getnewvnode: %w", err)
		}
		vr.Type = vnode.TypeRegular

		flags := vnode.FlushFlag(0)
		if flushForce {
			flags = vnode.FlushForce
		}

		if err := s.Vflush(mp, nil, flags); err != nil {
			logger.Warnf("vflush reported busy mounts: %v", err)
			return err
		}

		logger.Infof("vflush complete: %s", s.VPrint(vb))
		logger.Infof("vflush complete: %s", s.VPrint(vr))

		if err := s.VFSRemove(mp); err != nil {
			return fmt.Errorf("vfs_remove: %w", err)
		}
		logger.Infof("mount %v removed", mp.FSID)

		return nil
	},
}

func init() {
	flushCmd.Flags().BoolVar(&flushForce, "force", true, "Tear down in-use vnodes instead of reporting them busy.")
}
