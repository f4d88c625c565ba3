// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dkeye/hearth/internal/config"
)

// Bootstrap installs a console logger so config loading can log.
func Bootstrap() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Setup replaces the bootstrap logger once the config is known. In debug
// mode stderr gets the console format, otherwise JSON. When cfg.File is set
// a rotating file receives JSON as well. The returned closer flushes it.
func Setup(mode string, cfg config.LogConfig) io.Closer {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var stderr io.Writer = os.Stderr
	if mode == "debug" {
		stderr = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	writers := []io.Writer{stderr}
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, file)
		closer = file
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	log.Info().Str("module", "logging").Str("level", level.String()).Str("file", cfg.File).Msg("logger ready")
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
