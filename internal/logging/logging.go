// Package logging routes the standard logger through a level filter and an
// optional rotating file.
package logging

import (
	"io"
	"log"
	"os"

	"github.com/hashicorp/logutils"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/novy-bridge/internal/config"
)

// Levels are the prefixes recognised in log lines, lowest first.
var Levels = []logutils.LogLevel{"DEBUG", "INFO", "ERROR"}

// NewWriter returns the filtered writer described by cfg. The returned
// closer releases the log file, if any.
func NewWriter(cfg config.LogConfig, fallback io.Writer) (io.Writer, io.Closer) {
	var out io.Writer = fallback
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out = lj
		closer = lj
	}

	filter := &logutils.LevelFilter{
		Levels:   Levels,
		MinLevel: logutils.LogLevel(cfg.Level),
		Writer:   out,
	}
	return filter, closer
}

// Setup installs the filtered writer on the standard logger.
func Setup(cfg config.LogConfig) io.Closer {
	w, closer := NewWriter(cfg, os.Stderr)
	log.SetOutput(w)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Print("[DEBUG] Debug is on")
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
