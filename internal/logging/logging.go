// Package logging builds the hclog loggers shared by the binaries and Raft.
package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/heysubinoy/pyazcell/pkg/cell"
)

// New returns a logger writing to stderr at the given level name.
// Unknown level names fall back to info.
func New(name, level string) hclog.Logger {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  lvl,
		Output: os.Stderr,
	})
}

// CellErrors returns a cell.ErrorHandler that logs swallowed failures at debug level.
func CellErrors(logger hclog.Logger) cell.ErrorHandler {
	return func(op cell.Op, key string, err error) {
		logger.Debug("cell operation failed", "op", op, "key", key, "error", err)
	}
}
