package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrNotWAV is returned by [DecodeWAV] when the input is not a RIFF/WAVE
// stream or uses an encoding it cannot read.
var ErrNotWAV = errors.New("audio: not a supported WAV stream")

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE

	// maxFmtChunk covers WAVE_FORMAT_EXTENSIBLE (40 bytes) with room for
	// writer-specific padding.
	maxFmtChunk = 64

	// Streaming writers that cannot seek back leave the data size at one of
	// these placeholders; the chunk then runs to the end of the stream.
	wavSizeUnknown = 0xFFFFFFFF
)

// Clip is a fully decoded audio file.
type Clip struct {
	Format Format

	// Samples holds interleaved normalised samples.
	Samples []float32
}

// Duration returns the playing time of the clip in seconds.
func (c *Clip) Duration() float64 {
	if c.Format.SampleRate == 0 || c.Format.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.Format.SampleRate*c.Format.Channels)
}

// EncodeWAV wraps 16-bit PCM samples in a canonical 44-byte WAV header.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	const bps = 16
	dataSize := len(samples) * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*bps/8))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*bps/8))
	binary.LittleEndian.PutUint16(buf[34:36], bps)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}
	return buf
}

type wavFmt struct {
	tag           uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// DecodeWAV reads a RIFF/WAVE stream holding 16, 24 or 32-bit integer PCM or
// 32-bit IEEE float samples. Chunks other than "fmt " and "data" are skipped.
func DecodeWAV(r io.Reader) (*Clip, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrNotWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE magic", ErrNotWAV)
	}

	var (
		f   *wavFmt
		hdr [8]byte
	)
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("%w: no data chunk: %w", ErrNotWAV, err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size > maxFmtChunk {
				return nil, fmt.Errorf("%w: fmt chunk of %d bytes", ErrNotWAV, size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("%w: reading fmt chunk: %w", ErrNotWAV, err)
			}
			parsed, err := parseFmt(body)
			if err != nil {
				return nil, err
			}
			f = parsed
		case "data":
			if f == nil {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrNotWAV)
			}
			src := r
			if size != 0 && size != wavSizeUnknown {
				src = io.LimitReader(r, int64(size))
			}
			// The buffer grows with what the stream actually holds, so a
			// truncated file decodes up to its last whole sample.
			data, err := io.ReadAll(src)
			if err != nil {
				return nil, fmt.Errorf("audio: reading WAV data: %w", err)
			}
			return decodeSamples(f, data)
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return nil, fmt.Errorf("%w: skipping %q chunk: %w", ErrNotWAV, id, err)
			}
		}
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return nil, fmt.Errorf("%w: chunk padding: %w", ErrNotWAV, err)
			}
		}
	}
}

func parseFmt(body []byte) (*wavFmt, error) {
	if len(body) < 16 {
		return nil, fmt.Errorf("%w: fmt chunk too short (%d bytes)", ErrNotWAV, len(body))
	}
	f := &wavFmt{
		tag:           binary.LittleEndian.Uint16(body[0:2]),
		channels:      binary.LittleEndian.Uint16(body[2:4]),
		sampleRate:    binary.LittleEndian.Uint32(body[4:8]),
		bitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
	}
	if f.tag == wavFormatExtensible {
		// The real format tag is the first two bytes of the sub-format GUID.
		if len(body) < 26 {
			return nil, fmt.Errorf("%w: extensible fmt chunk too short", ErrNotWAV)
		}
		f.tag = binary.LittleEndian.Uint16(body[24:26])
	}
	if f.channels == 0 || f.sampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrNotWAV, f.channels, f.sampleRate)
	}
	switch {
	case f.tag == wavFormatPCM && (f.bitsPerSample == 16 || f.bitsPerSample == 24 || f.bitsPerSample == 32):
	case f.tag == wavFormatFloat && f.bitsPerSample == 32:
	default:
		return nil, fmt.Errorf("%w: format tag %d with %d bits per sample", ErrNotWAV, f.tag, f.bitsPerSample)
	}
	return f, nil
}

func decodeSamples(f *wavFmt, data []byte) (*Clip, error) {
	width := int(f.bitsPerSample / 8)
	n := len(data) / width
	out := make([]float32, n)
	for i := range n {
		b := data[i*width : (i+1)*width]
		switch {
		case f.tag == wavFormatFloat:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b))
		case width == 2:
			out[i] = Int16ToFloat(int16(binary.LittleEndian.Uint16(b)))
		case width == 3:
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			out[i] = float32(v) / (1 << 23)
		case width == 4:
			out[i] = float32(int32(binary.LittleEndian.Uint32(b))) / (1 << 31)
		}
	}
	return &Clip{
		Format:  Format{SampleRate: int(f.sampleRate), Channels: int(f.channels)},
		Samples: out,
	}, nil
}
