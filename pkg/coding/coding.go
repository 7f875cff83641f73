// Package coding implements the sample decoders used by the stream engine.
//
// Sample codecs (PCM and the ADPCM family) are addressed by an intra-block
// sample index relative to the channel cursor and never move the cursor
// themselves; layouts own cursor movement. Frame codecs (MPEG, Vorbis, Opus,
// FLAC) keep their own state behind the Codec interface.
package coding

import (
	"fmt"

	"github.com/drgolem/vgmtools/pkg/streamfile"
)

// Type identifies a codec. Endianness and nibble order are part of the identity.
type Type int

const (
	Silence Type = iota
	PCM16LE
	PCM16BE
	PCM16Int   // sample-interleaved little endian
	PCM16IntBE // sample-interleaved big endian
	PCM8
	PCM8U
	PCM8Int
	PCM8UInt
	PSX
	PSXBadFlags
	DSP
	IMA
	IMAInt
	DVIIMA
	DVIIMAInt
	XboxIMA
	XboxIMAMono
	SDX2
	SDX2Int
	AICA
	AICAInt
	XA
	EAXA
	EAXAInt
	MPEG
	Vorbis
	Opus
	FLAC

	// recognised, not built
	ATRAC3
	XMA1
	XMA2
	UbiADPCM
)

type typeInfo struct {
	name            string
	samplesPerFrame int
	bytesPerFrame   int
	frameCodec      bool
	unsupported     bool
}

var typeTable = map[Type]typeInfo{
	Silence:     {name: "Silence", samplesPerFrame: 1},
	PCM16LE:     {name: "PCM16LE", samplesPerFrame: 1, bytesPerFrame: 2},
	PCM16BE:     {name: "PCM16BE", samplesPerFrame: 1, bytesPerFrame: 2},
	PCM16Int:    {name: "PCM16Int", samplesPerFrame: 1, bytesPerFrame: 2},
	PCM16IntBE:  {name: "PCM16IntBE", samplesPerFrame: 1, bytesPerFrame: 2},
	PCM8:        {name: "PCM8", samplesPerFrame: 1, bytesPerFrame: 1},
	PCM8U:       {name: "PCM8U", samplesPerFrame: 1, bytesPerFrame: 1},
	PCM8Int:     {name: "PCM8Int", samplesPerFrame: 1, bytesPerFrame: 1},
	PCM8UInt:    {name: "PCM8UInt", samplesPerFrame: 1, bytesPerFrame: 1},
	PSX:         {name: "PSX", samplesPerFrame: 28, bytesPerFrame: 0x10},
	PSXBadFlags: {name: "PSXBadFlags", samplesPerFrame: 28, bytesPerFrame: 0x10},
	DSP:         {name: "DSP", samplesPerFrame: 14, bytesPerFrame: 0x08},
	IMA:         {name: "IMA", samplesPerFrame: 2, bytesPerFrame: 1},
	IMAInt:      {name: "IMAInt", samplesPerFrame: 1},
	DVIIMA:      {name: "DVIIMA", samplesPerFrame: 2, bytesPerFrame: 1},
	DVIIMAInt:   {name: "DVIIMAInt", samplesPerFrame: 1},
	XboxIMA:     {name: "XboxIMA", samplesPerFrame: 64},
	XboxIMAMono: {name: "XboxIMAMono", samplesPerFrame: 64, bytesPerFrame: 0x24},
	SDX2:        {name: "SDX2", samplesPerFrame: 1, bytesPerFrame: 1},
	SDX2Int:     {name: "SDX2Int", samplesPerFrame: 1, bytesPerFrame: 1},
	AICA:        {name: "AICA", samplesPerFrame: 2, bytesPerFrame: 1},
	AICAInt:     {name: "AICAInt", samplesPerFrame: 1},
	XA:          {name: "XA"},
	EAXA:        {name: "EAXA", samplesPerFrame: 28},
	EAXAInt:     {name: "EAXAInt", samplesPerFrame: 28, bytesPerFrame: 0x0f},
	MPEG:        {name: "MPEG", frameCodec: true},
	Vorbis:      {name: "Vorbis", frameCodec: true},
	Opus:        {name: "Opus", frameCodec: true},
	FLAC:        {name: "FLAC", frameCodec: true},
	ATRAC3:      {name: "ATRAC3", unsupported: true},
	XMA1:        {name: "XMA1", unsupported: true},
	XMA2:        {name: "XMA2", unsupported: true},
	UbiADPCM:    {name: "UbiADPCM", unsupported: true},
}

func (t Type) String() string {
	if ti, ok := typeTable[t]; ok {
		return ti.name
	}
	return fmt.Sprintf("coding(%d)", int(t))
}

// ParseType looks a codec up by its String name.
func ParseType(name string) (Type, bool) {
	for t, ti := range typeTable {
		if ti.name == name {
			return t, true
		}
	}
	return 0, false
}

// IsFrameCodec reports whether t is decoded through a Codec instance.
func (t Type) IsFrameCodec() bool {
	return typeTable[t].frameCodec
}

// Supported reports whether a decoder for t is built in.
func (t Type) Supported() bool {
	ti, ok := typeTable[t]
	return ok && !ti.unsupported
}

// SamplesPerFrame returns how many samples per channel one frame holds.
// Layouts never split a decode call across a frame boundary when this is
// greater than one. Frame codecs return 0.
func (t Type) SamplesPerFrame(channels int) int {
	switch t {
	case XA:
		if channels <= 0 {
			return 0
		}
		return 28 * 8 / minInt(channels, 2)
	}
	return typeTable[t].samplesPerFrame
}

// BytesPerFrame returns the bytes consumed per channel cursor for one frame.
// Codecs that share one frame among channels return the shared size.
// Frame codecs return 0.
func (t Type) BytesPerFrame(channels int) int {
	switch t {
	case XboxIMA:
		return 0x24 * channels
	case XA:
		return 0x80
	case EAXA:
		if channels == 2 {
			return 0x1e
		}
		return 0x0f
	case IMAInt, DVIIMAInt, AICAInt:
		return (channels + 1) / 2
	}
	return typeTable[t].bytesPerFrame
}

// SharedCursor reports whether all channels decode from one cursor, with
// samples or nibbles interleaved inside each frame.
func (t Type) SharedCursor(channels int) bool {
	switch t {
	case PCM16Int, PCM16IntBE, PCM8Int, PCM8UInt, SDX2Int, IMAInt, DVIIMAInt, AICAInt, XA:
		return true
	case XboxIMA, EAXA:
		return channels > 1
	}
	return false
}

// BytesToSamples converts a per-channel payload size to a sample count for
// codecs with a fixed frame size. Frame codecs and silence return 0.
func BytesToSamples(t Type, bytes int64, channels int) int64 {
	if bytes <= 0 || channels <= 0 {
		return 0
	}
	switch t {
	case PSX, PSXBadFlags:
		return PSXBytesToSamples(bytes, 1)
	case DSP:
		return DSPBytesToSamples(bytes, 1)
	case PCM16LE, PCM16BE, PCM16Int, PCM16IntBE:
		return PCMBytesToSamples(bytes, 1, 16)
	case PCM8, PCM8U, PCM8Int, PCM8UInt, SDX2, SDX2Int:
		return bytes
	case IMA, DVIIMA, AICA, IMAInt, DVIIMAInt, AICAInt:
		return bytes * 2
	case XboxIMA, XboxIMAMono:
		return bytes / 0x24 * 64
	case EAXA, EAXAInt:
		return EAXABytesToSamples(bytes, 1)
	case XA:
		return bytes / 0x80 * int64(t.SamplesPerFrame(channels))
	}
	return 0
}

// PSXBytesToSamples converts PS-ADPCM bytes (all channels) to samples per channel.
func PSXBytesToSamples(bytes int64, channels int) int64 {
	if channels <= 0 {
		return 0
	}
	return bytes / int64(channels) / 0x10 * 28
}

// DSPBytesToSamples converts DSP bytes (all channels) to samples per channel,
// counting a trailing partial frame.
func DSPBytesToSamples(bytes int64, channels int) int64 {
	if channels <= 0 {
		return 0
	}
	perChannel := bytes / int64(channels)
	samples := perChannel / 8 * 14
	if rem := perChannel % 8; rem > 1 {
		samples += (rem - 1) * 2
	}
	return samples
}

// DSPNibblesToSamples converts a DSP nibble count (as stored in DSP headers,
// frame headers included) to samples.
func DSPNibblesToSamples(nibbles int64) int64 {
	whole := nibbles / 16 * 14
	if rem := nibbles % 16; rem > 2 {
		return whole + rem - 2
	}
	return whole
}

// PCMBytesToSamples converts PCM bytes (all channels) to samples per channel.
func PCMBytesToSamples(bytes int64, channels, bitsPerSample int) int64 {
	if channels <= 0 || bitsPerSample <= 0 {
		return 0
	}
	return bytes / int64(channels*bitsPerSample/8)
}

// XboxIMABytesToSamples converts Xbox IMA bytes (all channels) to samples per channel.
func XboxIMABytesToSamples(bytes int64, channels int) int64 {
	if channels <= 0 {
		return 0
	}
	block := int64(0x24 * channels)
	samples := bytes / block * 64
	if rem := bytes%block/int64(channels) - 4; rem > 0 {
		samples += rem * 2
	}
	return samples
}

// IMABytesToSamples converts headerless 4-bit IMA bytes (all channels) to samples per channel.
func IMABytesToSamples(bytes int64, channels int) int64 {
	if channels <= 0 {
		return 0
	}
	return bytes * 2 / int64(channels)
}

// EAXABytesToSamples converts EA-XA v1 bytes (all channels) to samples per channel.
func EAXABytesToSamples(bytes int64, channels int) int64 {
	if channels <= 0 {
		return 0
	}
	return bytes / int64(channels) / 0x0f * 28
}

// XABytesToSamples converts CD-XA bytes to samples per channel. Blocked sizes
// count raw 0x930 sectors; unblocked sizes count 0x80 frames.
func XABytesToSamples(bytes int64, channels int, blocked, form2 bool) int64 {
	if channels <= 0 {
		return 0
	}
	spf := int64(28 * 8 / channels)
	if !blocked {
		return bytes / 0x80 * spf
	}
	frames := int64(16)
	if form2 {
		frames = 18
	}
	return bytes / 0x930 * spf * frames
}

// ChannelState is the per-channel cursor and decoder state.
type ChannelState struct {
	SF          *streamfile.StreamFile
	StartOffset int64
	Offset      int64

	Hist1     int32
	Hist2     int32
	StepIndex int32 // IMA step index, AICA step size

	Coefs [16]int16 // DSP predictor pairs

	// FrameSize is the frame length for codecs configured per stream.
	FrameSize int
}

// DecodeChannel decodes samples values of one channel, starting at the
// intra-block sample index first, into out with the given stride.
// Malformed or truncated frames decode as zeros; this never fails.
//
// Parameters:
//
//	st: channel cursor and history, updated in place
//	out: destination, out[0] receives the first sample
//	stride: distance between consecutive output samples (usually channel count)
//	channel, channels: position of this channel within the stream
func DecodeChannel(t Type, st *ChannelState, out []int16, stride, first, samples, channel, channels int) {
	if samples <= 0 {
		return
	}
	switch t {
	case PCM16LE:
		decodePCM16(st, out, stride, first, samples, 1, false)
	case PCM16BE:
		decodePCM16(st, out, stride, first, samples, 1, true)
	case PCM16Int:
		decodePCM16(st, out, stride, first, samples, channels, false)
	case PCM16IntBE:
		decodePCM16(st, out, stride, first, samples, channels, true)
	case PCM8:
		decodePCM8(st, out, stride, first, samples, 1, false)
	case PCM8U:
		decodePCM8(st, out, stride, first, samples, 1, true)
	case PCM8Int:
		decodePCM8(st, out, stride, first, samples, channels, false)
	case PCM8UInt:
		decodePCM8(st, out, stride, first, samples, channels, true)
	case PSX:
		decodePSX(st, out, stride, first, samples, false)
	case PSXBadFlags:
		decodePSX(st, out, stride, first, samples, true)
	case DSP:
		decodeDSP(st, out, stride, first, samples)
	case IMA:
		decodeIMA(st, out, stride, first, samples, false)
	case DVIIMA:
		decodeIMA(st, out, stride, first, samples, true)
	case IMAInt:
		decodeIMAInt(st, out, stride, first, samples, channel, channels, false)
	case DVIIMAInt:
		decodeIMAInt(st, out, stride, first, samples, channel, channels, true)
	case XboxIMA:
		decodeXboxIMA(st, out, stride, first, samples, channel, channels)
	case XboxIMAMono:
		decodeXboxIMA(st, out, stride, first, samples, 0, 1)
	case SDX2:
		decodeSDX2(st, out, stride, first, samples, 1)
	case SDX2Int:
		decodeSDX2(st, out, stride, first, samples, channels)
	case AICA:
		decodeAICA(st, out, stride, first, samples, channel, false)
	case AICAInt:
		decodeAICA(st, out, stride, first, samples, channel, true)
	case XA:
		decodeXA(st, out, stride, first, samples, channel, channels)
	case EAXA:
		decodeEAXA(st, out, stride, first, samples, channel, channels == 2)
	case EAXAInt:
		decodeEAXA(st, out, stride, first, samples, 0, false)
	default:
		for i := 0; i < samples; i++ {
			out[i*stride] = 0
		}
	}
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func lowNibbleSigned(b byte) int32 {
	return int32(int8(b<<4) >> 4)
}

func highNibbleSigned(b byte) int32 {
	return int32(int8(b) >> 4)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
