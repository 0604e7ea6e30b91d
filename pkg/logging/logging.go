// Package logging configures the global zerolog logger: human-readable
// console output plus a JSON log file per feature under the log directory.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB = 5
	defaultBackups   = 3
)

type Options struct {
	Level     string
	Dir       string // empty disables the file sink
	Name      string // file is <Dir>/<Name>.log
	Console   io.Writer
	MaxSizeMB int // rotate once the file grows past this
	Backups   int
}

// Setup replaces the global logger and returns the file to close on exit.
func Setup(opts Options) (io.Closer, error) {
	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(opts.Level); err == nil && opts.Level != "" {
		level = lvl
	}
	zerolog.SetGlobalLevel(level)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}}

	var closer io.Closer = nopCloser{}
	if opts.Dir != "" {
		name := opts.Name
		if name == "" {
			name = "rileybot"
		}
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, name+".log"),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.Backups,
		}
		if file.MaxSize <= 0 {
			file.MaxSize = defaultMaxSizeMB
		}
		if file.MaxBackups <= 0 {
			file.MaxBackups = defaultBackups
		}
		writers = append(writers, file)
		closer = file
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
