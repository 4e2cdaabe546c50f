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

// Package config holds the pre-Viper logging configuration shape. It predates
// the cfg package and is kept around only because internal/logger still
// accepts it alongside cfg.LoggingConfig during the migration.
package config

// Logging-level constants, mirrored by cfg.LogSeverity.
const (
	TRACE   string = "TRACE"
	DEBUG   string = "DEBUG"
	INFO    string = "INFO"
	WARNING string = "WARNING"
	ERROR   string = "ERROR"
	OFF     string = "OFF"
)

// LogRotateConfig controls on-disk log rotation via lumberjack.
type LogRotateConfig struct {
	MaxFileSizeMB   int
	BackupFileCount int
	Compress        bool
}

// DefaultLogRotateConfig returns the rotation policy used before the
// application's configuration has been parsed.
func DefaultLogRotateConfig() LogRotateConfig {
	return LogRotateConfig{
		MaxFileSizeMB:   512,
		BackupFileCount: 10,
		Compress:        true,
	}
}

// LogConfig is the legacy logging configuration shape.
type LogConfig struct {
	Severity        string
	Format          string
	FilePath        string
	LogRotateConfig LogRotateConfig
}
