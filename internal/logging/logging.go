/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process.
func Setup(environment, level string) zerolog.Logger {
	return SetupWithWriter(environment, level, nil)
}

// SetupWithWriter configures zerolog with an additional machine-readable writer.
func SetupWithWriter(environment, level string, additionalWriter io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var writer io.Writer = zerolog.ConsoleWriter{Out: os.Stdout}
	if strings.EqualFold(environment, "production") {
		// Production logs go to collectors as JSON.
		writer = os.Stdout
	}
	if additionalWriter != nil {
		writer = zerolog.MultiLevelWriter(writer, additionalWriter)
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(ParseLevel(environment, level))
	log.Logger = logger
	return logger
}

// ParseLevel resolves the log level. An explicit level wins; otherwise
// development runs at debug and everything else at info.
func ParseLevel(environment, level string) zerolog.Level {
	if level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && parsed != zerolog.NoLevel {
			return parsed
		}
	}
	if environment == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
