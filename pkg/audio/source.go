package audio

// Source is an audio capture device that pushes raw interleaved samples to a
// callback.
//
// The callback passed to Start runs on the device's real-time thread. It must
// return quickly and must not block, allocate or take locks; the intended
// consumer is [Ring.PushSlice]. The slice is only valid for the duration of
// the call.
//
// Implementations must be safe for concurrent use by the goroutine that calls
// Close and the device thread.
type Source interface {
	// Format reports the native sample rate and channel count of the stream.
	// It is valid before Start is called.
	Format() Format

	// Start begins capturing. It returns once the device is running; samples
	// arrive asynchronously through onData until Close.
	Start(onData func(samples []float32)) error

	// Errors delivers non-fatal stream errors such as device overruns. The
	// channel is closed by Close. Implementations drop errors rather than
	// block when nobody is reading.
	Errors() <-chan error

	// Close stops capture and releases the device. It is safe to call more
	// than once.
	Close() error
}

// DeviceInfo describes a capture device.
type DeviceInfo struct {
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}

// Finite is implemented by sources that end on their own, such as file or
// replay sources. Done is closed after the last sample has been delivered.
type Finite interface {
	Done() <-chan struct{}
}
