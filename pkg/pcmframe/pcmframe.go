// Package pcmframe holds blocks of rendered 16-bit PCM as they travel from
// a stream renderer to an audio sink.
package pcmframe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// BitsPerSample is the only sample width the renderer produces.
const BitsPerSample = 16

// HeaderSize is the size of the marshalled header that precedes the audio.
const HeaderSize = 20

// ErrShortBuffer is returned by Unmarshal when data ends early.
var ErrShortBuffer = errors.New("pcmframe: short buffer")

// Format describes the 16-bit interleaved PCM a frame carries.
type Format struct {
	SampleRate uint32
	Channels   uint8
}

// BytesPerFrame is the size of one interleaved sample frame.
func (f Format) BytesPerFrame() int {
	return int(f.Channels) * BitsPerSample / 8
}

// Frame is a run of interleaved little-endian samples starting at Pos
// samples into playback.
type Frame struct {
	Format  Format
	Samples uint16
	Pos     uint64
	Audio   []byte
}

// FromInt16 packs frames interleaved samples of pcm into a new Frame.
func FromInt16(f Format, pos uint64, pcm []int16, frames int) Frame {
	n := frames * int(f.Channels)
	audio := make([]byte, n*2)
	for i, v := range pcm[:n] {
		binary.LittleEndian.PutUint16(audio[i*2:], uint16(v))
	}
	return Frame{Format: f, Samples: uint16(frames), Pos: pos, Audio: audio}
}

// Int16 unpacks the audio into dst, growing it as needed.
func (fr *Frame) Int16(dst []int16) []int16 {
	n := len(fr.Audio) / 2
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(fr.Audio[i*2:]))
	}
	return dst
}

// Duration is the playing time of the frame.
func (fr *Frame) Duration() time.Duration {
	if fr.Format.SampleRate == 0 {
		return 0
	}
	return time.Duration(fr.Samples) * time.Second / time.Duration(fr.Format.SampleRate)
}

// Marshal encodes the frame, little endian:
//
//	0  sample rate  uint32
//	4  channels     uint8
//	5  bits         uint8 (always 16)
//	6  samples      uint16
//	8  position     uint64
//	16 audio length uint32
//	20 audio
func (fr *Frame) Marshal() []byte {
	buf := make([]byte, HeaderSize+len(fr.Audio))
	binary.LittleEndian.PutUint32(buf[0:], fr.Format.SampleRate)
	buf[4] = fr.Format.Channels
	buf[5] = BitsPerSample
	binary.LittleEndian.PutUint16(buf[6:], fr.Samples)
	binary.LittleEndian.PutUint64(buf[8:], fr.Pos)
	binary.LittleEndian.PutUint32(buf[16:], uint32(len(fr.Audio)))
	copy(buf[HeaderSize:], fr.Audio)
	return buf
}

// Unmarshal decodes data written by Marshal. The audio is copied.
func (fr *Frame) Unmarshal(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("header: %w: %d bytes", ErrShortBuffer, len(data))
	}
	if bits := data[5]; bits != BitsPerSample {
		return fmt.Errorf("pcmframe: unsupported bits per sample %d", bits)
	}
	n := int(binary.LittleEndian.Uint32(data[16:]))
	if len(data)-HeaderSize < n {
		return fmt.Errorf("audio: %w: want %d bytes, have %d", ErrShortBuffer, n, len(data)-HeaderSize)
	}
	fr.Format.SampleRate = binary.LittleEndian.Uint32(data[0:])
	fr.Format.Channels = data[4]
	fr.Samples = binary.LittleEndian.Uint16(data[6:])
	fr.Pos = binary.LittleEndian.Uint64(data[8:])
	fr.Audio = append([]byte(nil), data[HeaderSize:HeaderSize+n]...)
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (fr *Frame) MarshalBinary() ([]byte, error) {
	return fr.Marshal(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (fr *Frame) UnmarshalBinary(data []byte) error {
	return fr.Unmarshal(data)
}
