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

// Package cmd wires the vnode subsystem up to a Cobra CLI: a root command
// carrying the persistent config flags, plus subcommands that exercise the
// core.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jacobsa/vnode/cfg"
	"github.com/jacobsa/vnode/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error

	// Cfg is the fully bound configuration shared by every subcommand.
	Cfg cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "vnode",
	Short: "Exercise a standalone vnode management core",
	Long: `vnode hosts the allocation, freelist recycling, device-alias
hashing, reference counting, and teardown protocol of a BSD-style vnode
table as a standalone, in-process subsystem, fronted by subcommands that
boot it, mount and unmount filesystems against it, and drive concurrent
load through it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := cfg.Validate(&Cfg); err != nil {
			return err
		}
		return logger.Init(Cfg.Logging)
	},
}

// Execute runs the root command, printing any error to stderr and exiting
// nonzero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(bootCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(flushCmd)
	rootCmd.AddCommand(stressCmd)
}

func initConfig() {
	Cfg = cfg.Default()

	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&Cfg, cfg.DecoderOptions)
		return
	}

	resolved, err := filepath.Abs(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&Cfg, cfg.DecoderOptions)
}
