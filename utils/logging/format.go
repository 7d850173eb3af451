// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

const (
	AutoString   = "auto"
	PlainString  = "plain"
	ColorsString = "colors"
	JSONString   = "json"

	termTimeFormat = "[01-02|15:04:05.000]"
)

var FormatDescription = fmt.Sprintf(
	"The structure of log format. Options are: %q, %q, %q and %q",
	AutoString,
	PlainString,
	ColorsString,
	JSONString,
)

type Format int

const (
	Plain Format = iota
	Colors
	JSON
)

// ToFormat chooses a format from the provided string. An auto format picks
// colors when [fd] refers to a terminal and plain otherwise.
func ToFormat(h string, fd uintptr) (Format, error) {
	switch strings.ToLower(h) {
	case "", AutoString:
		if !term.IsTerminal(int(fd)) {
			return Plain, nil
		}
		return Colors, nil
	case PlainString:
		return Plain, nil
	case ColorsString:
		return Colors, nil
	case JSONString:
		return JSON, nil
	default:
		return Plain, fmt.Errorf("unknown format mode: %q", h)
	}
}

func (f Format) ConsoleEncoder() zapcore.Encoder {
	switch f {
	case Colors:
		return zapcore.NewConsoleEncoder(newTermEncoderConfig(colorLevelEncoder))
	case JSON:
		return zapcore.NewJSONEncoder(newJSONEncoderConfig())
	default:
		return zapcore.NewConsoleEncoder(newTermEncoderConfig(levelEncoder))
	}
}

func newTermEncoderConfig(lvlEncoder zapcore.LevelEncoder) zapcore.EncoderConfig {
	config := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    lvlEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(termTimeFormat),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	return config
}

func newJSONEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    levelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: func(d time.Duration, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(d.String()) },
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
