package norflash

import (
	"log/slog"
	"time"
)

// Option configures a Flash.
type Option func(*Flash)

// WithGeometry overrides the chip layout. ReadID replaces it when the chip
// reports a known JEDEC ID.
func WithGeometry(g Geometry) Option {
	return func(f *Flash) {
		f.geo = g
	}
}

// WithLogger sets the logger used for debug records. Records are discarded
// by default.
func WithLogger(l *slog.Logger) Option {
	return func(f *Flash) {
		f.log = l
	}
}

// WithTimeout bounds every busy and write-enable wait by d instead of the
// chip's datasheet timings.
func WithTimeout(d time.Duration) Option {
	return func(f *Flash) {
		f.timeout = d
	}
}

// WithPollInterval sets the delay between status reads while the chip is
// busy. Zero polls back to back.
func WithPollInterval(d time.Duration) Option {
	return func(f *Flash) {
		f.interval = d
	}
}
