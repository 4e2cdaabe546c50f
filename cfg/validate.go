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

import "fmt"

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be at least 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidLogSeverity(s LogSeverity) error {
	if s.Rank() < 0 {
		return fmt.Errorf("invalid log severity: %q", s)
	}
	return nil
}

func isValidVnodeConfig(c *VnodeConfig) error {
	if c.FreelistCapacity <= 0 {
		return fmt.Errorf("freelist-capacity must be positive, got %d", c.FreelistCapacity)
	}
	if c.AliasHashBuckets <= 0 {
		return fmt.Errorf("alias-hash-buckets must be positive, got %d", c.AliasHashBuckets)
	}
	if c.AliasHashBuckets&(c.AliasHashBuckets-1) != 0 {
		return fmt.Errorf("alias-hash-buckets must be a power of two, got %d", c.AliasHashBuckets)
	}
	return nil
}

// Validate returns a non-nil error if the config is invalid.
func Validate(config *Config) error {
	if err := isValidVnodeConfig(&config.Vnode); err != nil {
		return fmt.Errorf("error parsing vnode config: %w", err)
	}
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing logging.log-rotate config: %w", err)
	}
	if err := isValidLogSeverity(config.Logging.Severity); err != nil {
		return fmt.Errorf("error parsing logging.severity config: %w", err)
	}
	return nil
}
