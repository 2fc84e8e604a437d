package mira

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// kernelConfig holds configuration resolved from Option values.
type kernelConfig struct {
	taskCapacity  int
	queueCapacity int
	heapSize      int
	tickHz        int
	sentient      bool
	logger        *logiface.Logger[*stumpy.Event]
	randSource    func() uint64
}

// Option configures a Kernel at construction time.
type Option interface {
	applyKernel(*kernelConfig) error
}

// kernelOptionImpl implements Option.
type kernelOptionImpl struct {
	applyFunc func(*kernelConfig) error
}

func (o *kernelOptionImpl) applyKernel(cfg *kernelConfig) error {
	return o.applyFunc(cfg)
}

// WithTaskCapacity sets the fixed number of task-table slots. Default 32,
// matching the original task table's capacity.
func WithTaskCapacity(n int) Option {
	return &kernelOptionImpl{func(cfg *kernelConfig) error {
		cfg.taskCapacity = n
		return nil
	}}
}

// WithQueueCapacity sets the apoptosis work queue's bounded capacity.
// Default 32.
func WithQueueCapacity(n int) Option {
	return &kernelOptionImpl{func(cfg *kernelConfig) error {
		cfg.queueCapacity = n
		return nil
	}}
}

// WithHeap sets the size in bytes of the bump allocator's backing arena.
func WithHeap(size int) Option {
	return &kernelOptionImpl{func(cfg *kernelConfig) error {
		cfg.heapSize = size
		return nil
	}}
}

// WithTickHz sets the nominal timer-tick frequency. Default 1000 (1kHz, so
// the tick counter is in milliseconds).
func WithTickHz(hz int) Option {
	return &kernelOptionImpl{func(cfg *kernelConfig) error {
		cfg.tickHz = hz
		return nil
	}}
}

// WithLogger attaches a structured logger. A nil logger is never installed;
// the zero-value default discards output.
func WithLogger(logger *logiface.Logger[*stumpy.Event]) Option {
	return &kernelOptionImpl{func(cfg *kernelConfig) error {
		if logger != nil {
			cfg.logger = logger
		}
		return nil
	}}
}

// WithSentient enables or disables the resilience subsystem at runtime. This
// is the runtime replacement for the original's compile-time CONFIG_SENTIENT
// toggle: when false, the fault sensor only advances the faulting
// instruction pointer, reproducing the control-group livelock vulnerability.
// Default true.
func WithSentient(enabled bool) Option {
	return &kernelOptionImpl{func(cfg *kernelConfig) error {
		cfg.sentient = enabled
		return nil
	}}
}

// WithRandSource overrides the adaptive controller's randomness source. The
// default is arch.Rand (crypto/rand, with a clock-derived fallback).
func WithRandSource(source func() uint64) Option {
	return &kernelOptionImpl{func(cfg *kernelConfig) error {
		if source != nil {
			cfg.randSource = source
		}
		return nil
	}}
}

// resolveOptions applies Option values over the documented defaults.
func resolveOptions(opts []Option) (*kernelConfig, error) {
	cfg := &kernelConfig{
		taskCapacity:  32,
		queueCapacity: 32,
		heapSize:      128 << 20,
		tickHz:        1000,
		sentient:      true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyKernel(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = stumpy.L.New(stumpy.L.WithStumpy())
	}
	// Clamp caller-supplied capacities to sane minimums rather than letting
	// a zero or negative option value through to the allocator/table/queue
	// constructors, which would otherwise silently refuse every allocation.
	cfg.taskCapacity = maxOf(cfg.taskCapacity, 1)
	cfg.queueCapacity = maxOf(cfg.queueCapacity, 1)
	cfg.heapSize = maxOf(cfg.heapSize, 1)
	cfg.tickHz = maxOf(cfg.tickHz, 1)
	return cfg, nil
}
