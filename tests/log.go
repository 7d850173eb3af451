// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tests

import (
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ava-labs/blockprop/utils/logging"
)

const (
	logFileMaxSizeMB  = 64
	logFileMaxBackups = 4
)

func NewDefaultLogger(prefix string) logging.Logger {
	log, err := LoggerForFormat(prefix, logging.AutoString, logging.Debug)
	if err != nil {
		// This should never happen since auto is a valid log format
		panic(err)
	}
	return log
}

// LoggerForFormat returns a stdout logger using the named format at the
// provided level.
func LoggerForFormat(prefix string, rawLogFormat string, level logging.Level) (logging.Logger, error) {
	core, err := stdoutCore(rawLogFormat, level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(prefix, core), nil
}

// LoggerWithFile returns a logger that writes to stdout like LoggerForFormat
// and also writes JSON entries to the rotated file at [path].
func LoggerWithFile(prefix string, rawLogFormat string, level logging.Level, path string) (logging.Logger, error) {
	core, err := stdoutCore(rawLogFormat, level)
	if err != nil {
		return nil, err
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		Compress:   true,
	}
	return logging.NewLogger(
		prefix,
		core,
		logging.NewWrappedCore(level, file, logging.JSON.ConsoleEncoder()),
	), nil
}

func stdoutCore(rawLogFormat string, level logging.Level) (logging.WrappedCore, error) {
	writeCloser := os.Stdout
	logFormat, err := logging.ToFormat(rawLogFormat, writeCloser.Fd())
	if err != nil {
		return logging.WrappedCore{}, err
	}
	return logging.NewWrappedCore(level, writeCloser, logFormat.ConsoleEncoder()), nil
}
