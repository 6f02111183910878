package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"github.com/stellarlinkco/jarvis/internal/config"
)

// Default rotation parameters, used when the config leaves them at zero.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Writer returns the destination for process logs: stderr alone, or stderr
// plus a size-rotated file when cfg.File is set. The returned closer is nil
// when no file is involved.
func Writer(cfg config.LogConfig, stderr io.Writer) (io.Writer, io.Closer) {
	if stderr == nil {
		stderr = os.Stderr
	}
	if cfg.File == "" {
		return stderr, nil
	}
	_ = os.MkdirAll(filepath.Dir(cfg.File), 0o750)
	file := &lj.Logger{
		Filename:   cfg.File,
		MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   cfg.Compress,
	}
	return io.MultiWriter(stderr, file), file
}

// Setup points the standard logger at Writer's destination.
// Callers close the returned closer on shutdown.
func Setup(cfg config.LogConfig) io.Closer {
	w, closer := Writer(cfg, os.Stderr)
	log.SetOutput(w)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return closer
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
