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

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully bound configuration for the vnode subsystem and its
// surrounding CLI. It is populated from flags, a config file, and defaults,
// in that order of precedence.
type Config struct {
	Vnode VnodeConfig `yaml:"vnode"`

	Mount MountConfig `yaml:"mount"`

	Logging LoggingConfig `yaml:"logging"`

	Debug DebugConfig `yaml:"debug"`
}

// VnodeConfig sizes the vnode table itself: the freelist and the
// device-alias hash.
type VnodeConfig struct {
	// FreelistCapacity is the number of vnode slots vfsinit preallocates.
	// getnewvnode reports table-full once every slot is in active use.
	FreelistCapacity int `yaml:"freelist-capacity"`

	// AliasHashBuckets is the initial size hint for the device-alias table,
	// which is a map keyed on (rdev, type) rather than a fixed bucket array.
	// Must be a power of two.
	AliasHashBuckets int `yaml:"alias-hash-buckets"`
}

// MountConfig assigns the fsid of the root mount vfsinit registers.
type MountConfig struct {
	RootFSIDMajor uint64 `yaml:"root-fsid-major"`
	RootFSIDMinor uint64 `yaml:"root-fsid-minor"`
}

// LoggingConfig selects the severity, format, and file sink for the
// process-wide logger.
type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`

	Format string `yaml:"format"`

	FilePath ResolvedPath `yaml:"file-path"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

// LogRotateLoggingConfig is the yaml-bound counterpart of
// config.LogRotateConfig, expressed in the new cfg dialect.
type LogRotateLoggingConfig struct {
	MaxFileSizeMb   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

// DebugConfig exposes the fatal-invariant handling and lock-contention
// diagnostic knobs.
type DebugConfig struct {
	// ExitOnInvariantViolation selects a fatal log plus exit when an internal
	// invariant is violated. When unset, the violation panics instead, which
	// lets a unit test observe it without killing the process.
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	// LogMutex is accepted from the config file and the debug-log-mutex flag.
	// Nothing in this module reads it, so setting it prints no diagnostics.
	LogMutex bool `yaml:"log-mutex"`
}

// BindFlags registers a pflag for every Config field except the
// logging.log-rotate settings, binding each to Viper under the same key used
// by the yaml tags above. The log-rotate settings come only from the config
// file or the defaults.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.IntP("freelist-capacity", "", DefaultFreelistCapacity(), "Number of vnode slots to preallocate.")
	if err := viper.BindPFlag("vnode.freelist-capacity", flagSet.Lookup("freelist-capacity")); err != nil {
		return err
	}

	flagSet.IntP("alias-hash-buckets", "", 8, "Initial size hint for the device-alias table; must be a power of two.")
	if err := viper.BindPFlag("vnode.alias-hash-buckets", flagSet.Lookup("alias-hash-buckets")); err != nil {
		return err
	}

	flagSet.Uint64P("root-fsid-major", "", 1, "Major component of the root mount's fsid.")
	if err := viper.BindPFlag("mount.root-fsid-major", flagSet.Lookup("root-fsid-major")); err != nil {
		return err
	}

	flagSet.Uint64P("root-fsid-minor", "", 1, "Minor component of the root mount's fsid.")
	if err := viper.BindPFlag("mount.root-fsid-minor", flagSet.Lookup("root-fsid-minor")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", string(InfoLogSeverity), "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")
	if err := viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log line format: text or json.")
	if err := viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to a log file. Logs go to stdout when unset.")
	if err := viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.BoolP("exit-on-invariant-violation", "", true, "Exit the process when an internal invariant is violated.")
	if err := viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("exit-on-invariant-violation")); err != nil {
		return err
	}

	flagSet.BoolP("debug-log-mutex", "", false, "Accepted for config compatibility; has no effect.")
	if err := viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug-log-mutex")); err != nil {
		return err
	}

	return nil
}
