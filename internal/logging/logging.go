// Package logging builds the debug logger shared by the CLI, view-model and
// transport.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger writing to w at debug level, or a no-op
// logger when debug is off.
func New(debug bool, w io.Writer) zerolog.Logger {
	if !debug {
		return zerolog.Nop()
	}
	out := zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
