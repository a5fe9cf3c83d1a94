package avs2

import "github.com/rs/zerolog"

// CPUFlags is an opaque bitmask describing which CPU feature tiers
// the numerical kernels are allowed to use. The pipeline never
// inspects it; the decoder passes CPUFlags(0) to the KernelsFactory,
// with Options.DisableAVX passed alongside it.
type CPUFlags uint32

// Options configures a decoder handle. Open fills in thread count and
// log level defaults; NewKernels has no default and must be set.
type Options struct {
	Threads    int
	LogLevel   zerolog.Level
	UserData   interface{}
	DisableAVX bool

	NewKernels KernelsFactory
}

// Option mutates an Options value, the functional-option pattern
// grounded on the teacher's media/av.Options/Option pair.
type Option func(*Options)

// WithThreads sets the worker thread budget. 0 means auto (capped at
// an implementation limit, resolved in Open).
func WithThreads(n int) Option {
	return func(o *Options) { o.Threads = n }
}

// WithLogLevel sets the per-handle logger's minimum level.
func WithLogLevel(level zerolog.Level) Option {
	return func(o *Options) { o.LogLevel = level }
}

// WithUserData attaches an opaque caller-owned value to the handle,
// retrievable through Decoder.UserData.
func WithUserData(v interface{}) Option {
	return func(o *Options) { o.UserData = v }
}

// WithDisableAVX forwards a CPU-feature-gating hint to the kernel
// factory. The pipeline itself never reads this.
func WithDisableAVX(disable bool) Option {
	return func(o *Options) { o.DisableAVX = disable }
}

// WithKernelsFactory supplies the constructor used to build a
// kernels.Set for each sequence's bit depth and dimensions. Required:
// Open fails fatal-configuration if left nil.
func WithKernelsFactory(f KernelsFactory) Option {
	return func(o *Options) { o.NewKernels = f }
}

const maxAutoThreads = 16

func resolveThreads(requested int) int {
	if requested > 0 {
		if requested > maxAutoThreads {
			return maxAutoThreads
		}
		return requested
	}
	return 4
}
