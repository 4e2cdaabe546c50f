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
	"golang.org/x/sync/errgroup"
)

var stressWorkers int

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Contend Vget/Vrele against a single vnode from many goroutines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		rootFSID := vnode.FSID{Major: Cfg.Mount.RootFSIDMajor, Minor: Cfg.Mount.RootFSIDMinor}
		s, err := vnode.VFSInit(ctx, Cfg, clock.RealClock{}, rootFSID,
			vnode.NoopNameCache{}, vnode.NoopBufferCache{}, vnode.NoopCredentialManager{})
		if err != nil {
			return err
		}

		mp := s.Root()
		ops := vnode.NewMemOps()
		vp, err := s.GetNewVnode(vnode.TagMem, mp, ops)
		if err != nil {
			return fmt.Errorf("getnewvnode: %w", err)
		}

		// The initial GetNewVnode reference is released up front so the
		// contention below starts from usecount == 0 and every worker races
		// through the freelist-revival path.
		if err := s.Vrele(vp); err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < stressWorkers; i++ {
			g.Go(func() error {
				if err := s.Vget(gctx, vp, vnode.LockExclusive); err != nil {
					// ErrStale means this worker lost the race against a
					// concurrent teardown; that is a successful, expected
					// outcome of the interlock, not a failure to report.
					if err == vnode.ErrStale {
						return nil
					}
					return err
				}
				return s.Vput(vp)
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		logger.Infof("stress complete: %s", s.VPrint(vp))
		return nil
	},
}

func init() {
	stressCmd.Flags().IntVar(&stressWorkers, "workers", 8, "Number of goroutines contending for the vnode.")
}
