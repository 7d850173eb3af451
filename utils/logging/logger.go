// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"io"

	"go.uber.org/zap"
)

// Logger defines the interface that is used to keep a record of all events that
// happen to the harness.
type Logger interface {
	io.Writer // For logging pre-formatted messages

	// Log that a fatal error has occurred. The harness should stop the
	// current scenario after this.
	Fatal(msg string, fields ...zap.Field)
	// Log that an error has occurred. The scenario can usually not recover
	// from this.
	Error(msg string, fields ...zap.Field)
	// Log that an event has occurred that may indicate a future error or
	// flakiness, e.g. a rejected proposal that will be retried.
	Warn(msg string, fields ...zap.Field)
	// Log an event that should be shown to the person running the harness.
	Info(msg string, fields ...zap.Field)
	// Log an event that may help trace a scenario, e.g. a phase transition.
	Trace(msg string, fields ...zap.Field)
	// Log an event that may help debug a scenario, e.g. each poll attempt.
	Debug(msg string, fields ...zap.Field)
	// Log extremely detailed events, e.g. raw client output.
	Verbo(msg string, fields ...zap.Field)

	// With returns a child logger that prepends [fields] to every entry.
	With(fields ...zap.Field) Logger

	// Enabled returns true if the given level is at or above this level.
	Enabled(lvl Level) bool

	// Stop this logger and write back all meta-data.
	Stop()
}
