package mindexer

import (
	"time"

	"github.com/rs/zerolog"
)

// Options configures an opened collection
type Options struct {
	Now    func() time.Time
	Logger zerolog.Logger
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		Now:    time.Now,
		Logger: zerolog.Nop(),
	}
}
