// Package portaudio implements [audio.Source] on top of the PortAudio
// callback API.
//
// The stream runs in callback mode: PortAudio invokes the capture callback on
// its own real-time thread with each block of interleaved float32 samples.
// Input overflows reported by the driver surface on [Source.Errors].
package portaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/voxgate/pkg/audio"
)

const (
	defaultFramesPerBuffer = 512
	errorBuffer            = 16
)

// ErrNoInputDevice is returned when no capture device is available.
var ErrNoInputDevice = errors.New("portaudio: no input device available")

// Option configures a [Source].
type Option func(*Source)

// WithDevice selects an input device by exact name. Empty or "default" uses
// the host's default input device.
func WithDevice(name string) Option {
	return func(s *Source) { s.deviceName = name }
}

// WithSampleRate overrides the device's default sample rate.
func WithSampleRate(hz int) Option {
	return func(s *Source) { s.sampleRate = hz }
}

// WithChannels overrides the channel count opened on the device.
func WithChannels(n int) Option {
	return func(s *Source) { s.channels = n }
}

// WithFramesPerBuffer sets the callback block size in frames. Zero lets
// PortAudio choose.
func WithFramesPerBuffer(n int) Option {
	return func(s *Source) { s.framesPerBuffer = n }
}

// Source captures from a PortAudio input device.
type Source struct {
	mu sync.Mutex

	deviceName      string
	sampleRate      int
	channels        int
	framesPerBuffer int

	device *portaudio.DeviceInfo
	stream *portaudio.Stream
	errs   chan error
	closed bool
}

var _ audio.Source = (*Source)(nil)

// New initialises PortAudio and resolves the input device. The returned
// Source reports the device's native format (or the overrides) through
// Format; the stream is opened by Start.
//
// Every successful New must be paired with Close, which terminates PortAudio.
func New(opts ...Option) (*Source, error) {
	s := &Source{
		framesPerBuffer: defaultFramesPerBuffer,
		errs:            make(chan error, errorBuffer),
	}
	for _, o := range opts {
		o(s)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}

	dev, err := findDevice(s.deviceName)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	s.device = dev

	if s.sampleRate <= 0 {
		s.sampleRate = int(dev.DefaultSampleRate)
	}
	if s.channels <= 0 {
		s.channels = dev.MaxInputChannels
		if s.channels > 2 {
			slog.Info("portaudio: device has more than two input channels, capturing the first two",
				"device", dev.Name,
				"channels", dev.MaxInputChannels,
			)
			s.channels = 2
		}
	}
	return s, nil
}

// Format implements [audio.Source].
func (s *Source) Format() audio.Format {
	return audio.Format{SampleRate: s.sampleRate, Channels: s.channels}
}

// DeviceName returns the resolved device name.
func (s *Source) DeviceName() string { return s.device.Name }

// Start implements [audio.Source].
func (s *Source) Start(onData func([]float32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("portaudio: source is closed")
	}
	if s.stream != nil {
		return errors.New("portaudio: source already started")
	}

	callback := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		if flags&portaudio.InputOverflow != 0 {
			s.report(errors.New("portaudio: input overflow"))
		}
		onData(in)
	}

	params := portaudio.LowLatencyParameters(s.device, nil)
	params.Input.Channels = s.channels
	params.SampleRate = float64(s.sampleRate)
	params.FramesPerBuffer = s.framesPerBuffer

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return fmt.Errorf("portaudio: open stream on %q (%s): %w", s.device.Name, s.Format(), err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("portaudio: start stream: %w", err)
	}
	s.stream = stream

	slog.Info("portaudio: capture started",
		"device", s.device.Name,
		"format", s.Format().String(),
		"frames_per_buffer", s.framesPerBuffer,
	)
	return nil
}

// report delivers a stream error without blocking the audio thread.
func (s *Source) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// Errors implements [audio.Source].
func (s *Source) Errors() <-chan error { return s.errs }

// Close implements [audio.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("portaudio: stop stream: %w", err))
		}
		if err := s.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("portaudio: close stream: %w", err))
		}
	}
	// The callback can no longer run once the stream is stopped.
	close(s.errs)
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: terminate: %w", err))
	}
	return errors.Join(errs...)
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" || name == "default" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoInputDevice, err)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("%w: no input device named %q", ErrNoInputDevice, name)
}

// Devices lists the input-capable devices known to PortAudio.
func Devices() ([]audio.DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	var defName string
	if def, err := portaudio.DefaultInputDevice(); err == nil {
		defName = def.Name
	}

	var out []audio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}
		info := audio.DeviceInfo{
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			Default:           dev.Name == defName,
		}
		if dev.HostApi != nil {
			info.HostAPI = dev.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}
