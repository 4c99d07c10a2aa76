package semidbm

import (
	"go.uber.org/zap"

	"github.com/rsavin/semidbm/loader"
)

// Options configures a store at open time. The zero value plus
// defaultOptions gives verify_checksums=false, a no-op logger, and the
// mmap loader, matching the spec's stated defaults.
type Options struct {
	verifyChecksums bool
	logger          *zap.SugaredLogger
	loader          loader.Loader
}

// Option follows the functional-options pattern used throughout this
// repo's other configurable constructors.
type Option func(*Options)

// WithVerifyChecksums enables CRC-32 verification on every Get,
// trading read throughput for corruption detection.
func WithVerifyChecksums(verify bool) Option {
	return func(o *Options) {
		o.verifyChecksums = verify
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

// WithMmapLoader selects the memory-mapped index loader. This is the
// default.
func WithMmapLoader() Option {
	return func(o *Options) {
		o.loader = loader.MmapLoader{}
	}
}

// WithStreamLoader selects the sequential-read index loader, useful on
// platforms or filesystems where mmap is unavailable or undesirable.
func WithStreamLoader() Option {
	return func(o *Options) {
		o.loader = loader.StreamLoader{}
	}
}

// WithMmapWindowSize overrides the mmap loader's sliding-window size in
// bytes (default os.Getpagesize() * 300). Only takes effect when the
// mmap loader is selected, either by default or via WithMmapLoader
// applied before this option.
func WithMmapWindowSize(bytes int64) Option {
	return func(o *Options) {
		if _, ok := o.loader.(loader.MmapLoader); ok {
			o.loader = loader.MmapLoader{WindowSize: bytes}
		}
	}
}

func defaultOptions() *Options {
	return &Options{
		verifyChecksums: false,
		logger:          zap.NewNop().Sugar(),
		loader:          loader.MmapLoader{},
	}
}

func resolveOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}
