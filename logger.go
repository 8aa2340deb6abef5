// Copyright 2026 DeviceLink, Inc.
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

package linksdk

import (
	"log/slog"

	"github.com/go-logr/logr"
)

var globalLog *slog.Logger

func getLogger() *slog.Logger {
	if globalLog != nil {
		return globalLog
	}
	return slog.Default()
}

// SetLogger overrides the default logger with a logr.Logger.
// To use the default slog.Logger, use SetSlogLogger instead.
func SetLogger(l logr.Logger) {
	globalLog = slog.New(logr.ToSlogHandler(l))
}

// SetSlogLogger overrides the default logger.
func SetSlogLogger(l *slog.Logger) {
	globalLog = l
}
