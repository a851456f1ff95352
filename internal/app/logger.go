package app

import (
	"io"
	"log"
)

// orDiscard returns logger, or a logger that drops everything when logger is nil.
func orDiscard(logger *log.Logger) *log.Logger {
	if logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return logger
}
