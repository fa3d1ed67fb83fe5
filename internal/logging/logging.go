package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the run logger.
type Options struct {
	// Path of the JSON log file. Empty disables the file sink.
	Path string
	// Verbose mirrors events to stderr in console format.
	Verbose bool
	// Debug lowers the level from info to debug.
	Debug bool
}

// New builds the run logger. The returned closer must be called to flush the log file.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if opts.Path != "" {
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("opening log: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}
	if opts.Verbose {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
