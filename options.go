// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"log/slog"
	"runtime"

	"github.com/klauspost/compress/flate"
)

// DefaultMinCompressionRatio is the largest compressed/uncompressed ratio at
// which a deflated body is kept. Anything larger is stored instead.
const DefaultMinCompressionRatio = 0.9

// Config defines archive-wide settings used when saving and extracting.
type Config struct {
	// MinCompressionRatio is the compressed/uncompressed threshold above which
	// a freshly compressed body is discarded and the entry is stored.
	MinCompressionRatio float64

	// CompressionLevel is the deflate level assigned to new entries (1-9).
	// Individual entries may override it with Entry.SetCompressionLevel.
	CompressionLevel int

	// Workers caps the number of entries compressed concurrently during save.
	Workers int

	// TempDir holds the per-save scratch directory. Empty means os.TempDir.
	TempDir string

	// Logger receives structured diagnostics. Nil discards them.
	Logger *slog.Logger

	// OnProgress is called with save and extraction progress.
	// Calls are serialized; fractions reported within one operation never decrease.
	OnProgress ProgressFunc
}

func defaultConfig() Config {
	return Config{
		MinCompressionRatio: DefaultMinCompressionRatio,
		CompressionLevel:    flate.BestCompression,
		Workers:             runtime.GOMAXPROCS(0),
	}
}

// Option configures an Archive.
type Option func(*Config)

// WithMinCompressionRatio overrides the keep-or-store threshold.
// Values outside (0, 1] are ignored.
func WithMinCompressionRatio(ratio float64) Option {
	return func(c *Config) {
		if ratio > 0 && ratio <= 1 {
			c.MinCompressionRatio = ratio
		}
	}
}

// WithCompressionLevel sets the default deflate level for new entries.
func WithCompressionLevel(level int) Option {
	return func(c *Config) {
		c.CompressionLevel = normalizeLevel(level)
	}
}

// WithWorkers limits concurrent compression. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Workers = n
		}
	}
}

// WithTempDir places scratch files for staged bodies under dir.
func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

// WithLogger sets the logger for archive operations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Config) {
		c.OnProgress = fn
	}
}
