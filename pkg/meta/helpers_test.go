package meta

import (
	"encoding/binary"
	"testing"

	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

// chunkWriter assembles synthetic container files.
type chunkWriter struct {
	b []byte
}

func (w *chunkWriter) id(s string)   { w.b = append(w.b, s...) }
func (w *chunkWriter) be32(v uint32) { w.b = binary.BigEndian.AppendUint32(w.b, v) }
func (w *chunkWriter) le32(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }
func (w *chunkWriter) be16(v uint16) { w.b = binary.BigEndian.AppendUint16(w.b, v) }
func (w *chunkWriter) le16(v uint16) { w.b = binary.LittleEndian.AppendUint16(w.b, v) }
func (w *chunkWriter) u8(v ...byte)  { w.b = append(w.b, v...) }
func (w *chunkWriter) raw(p []byte)  { w.b = append(w.b, p...) }
func (w *chunkWriter) zeros(n int)   { w.b = append(w.b, make([]byte, n)...) }
func (w *chunkWriter) off() int64    { return int64(len(w.b)) }

func (w *chunkWriter) padTo(n int64) {
	if d := n - w.off(); d > 0 {
		w.zeros(int(d))
	}
}

func ramp(n, base int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16((base + i*7) % 30000)
	}
	return out
}

func le16Bytes(samples []int16) []byte {
	out := make([]byte, 0, len(samples)*2)
	for _, v := range samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(v))
	}
	return out
}

func be16Bytes(samples []int16) []byte {
	out := make([]byte, 0, len(samples)*2)
	for _, v := range samples {
		out = binary.BigEndian.AppendUint16(out, uint16(v))
	}
	return out
}

// genhOptions describes a GENH header. A loop start of -1 means no loop.
type genhOptions struct {
	channels   int32
	interleave int32
	rate       int32
	loopStart  int32
	samples    int32
	codec      int32
	start      int32
	headerSize int32
}

const genhCodecPCM16LE = 4

func genhFile(o genhOptions, data []byte) []byte {
	if o.start == 0 && o.headerSize == 0 {
		o.start, o.headerSize = 0x40, 0x40
	}
	var w chunkWriter
	w.id("GENH")
	for _, v := range []int32{o.channels, o.interleave, o.rate, o.loopStart, o.samples,
		o.codec, o.start, o.headerSize, 0, 0, 0, 0, 0, 0} {
		w.le32(uint32(v))
	}
	w.padTo(int64(o.start))
	w.raw(data)
	return w.b
}

// pcmGENH is a mono or interleaved PCM16LE GENH of the given samples.
func pcmGENH(channels int, rate int, loopStart int, samples []int16) []byte {
	return genhFile(genhOptions{
		channels:   int32(channels),
		interleave: -1,
		rate:       int32(rate),
		loopStart:  int32(loopStart),
		samples:    int32(len(samples) / channels),
		codec:      genhCodecPCM16LE,
	}, le16Bytes(samples))
}

func mustOpen(t testing.TB, name string, data []byte) *vgmstream.Stream {
	t.Helper()
	s, err := Open(streamfile.FromBytes(name, data))
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func render(s *vgmstream.Stream, frames int) []int16 {
	out := make([]int16, frames*s.Channels)
	s.Render(out, frames)
	return out
}

func equal16(a, b []int16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
