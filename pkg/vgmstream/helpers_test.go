package vgmstream

import (
	"encoding/binary"
	"testing"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
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
func (w *chunkWriter) u8(v byte)     { w.b = append(w.b, v) }
func (w *chunkWriter) raw(p []byte)  { w.b = append(w.b, p...) }
func (w *chunkWriter) zeros(n int)   { w.b = append(w.b, make([]byte, n)...) }
func (w *chunkWriter) off() int64    { return int64(len(w.b)) }

// padTo zero fills up to absolute offset n.
func (w *chunkWriter) padTo(n int64) {
	if d := n - w.off(); d > 0 {
		w.zeros(int(d))
	}
}

func (w *chunkWriter) source(name string) *streamfile.StreamFile {
	return streamfile.FromBytes(name, w.b)
}

// noise returns deterministic pseudo random bytes.
func noise(n int, seed uint32) []byte {
	out := make([]byte, n)
	x := seed*2654435761 + 1
	for i := range out {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = byte(x >> 7)
	}
	return out
}

// psxData returns frames PS-ADPCM frames with valid filter and shift bytes.
func psxData(frames int, seed uint32) []byte {
	data := noise(frames*0x10, seed)
	for f := 0; f < frames; f++ {
		data[f*0x10] = byte((f%5)<<4 | (f%8 + 4))
		data[f*0x10+1] = 0
	}
	return data
}

// dspData returns frames DSP frames using predictors 0..3 and small scales.
func dspData(frames int, seed uint32) []byte {
	data := noise(frames*8, seed)
	for f := 0; f < frames; f++ {
		data[f*8] = byte((f%4)<<4 | (f%6 + 2))
	}
	return data
}

var testDSPCoefs = [16]int16{
	0, 0, 1024, 0, 1800, -800, 1500, -600,
}

func ramp(n, base int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16((base + i) % 30000)
	}
	return out
}

// pcmStream is a flat little endian PCM stream of interleaved samples.
func pcmStream(t testing.TB, channels, rate int, samples []int16) *Stream {
	t.Helper()
	data := make([]byte, 0, len(samples)*2)
	for _, v := range samples {
		data = binary.LittleEndian.AppendUint16(data, uint16(v))
	}

	s := New(channels, false)
	s.Coding = coding.PCM16LE
	if channels > 1 {
		s.Coding = coding.PCM16Int
	}
	s.Layout = LayoutFlat
	s.Meta = "test pcm"
	s.SampleRate = rate
	s.NumSamples = len(samples) / channels
	if err := s.Open(streamfile.FromBytes("test.pcm", data), 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func setup(t testing.TB, s *Stream) *Stream {
	t.Helper()
	if err := s.Setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return s
}

func loopPCM(t testing.TB, samples []int16, start, end int) *Stream {
	t.Helper()
	s := pcmStream(t, 1, 8000, samples)
	s.LoopFlag = true
	s.LoopStart, s.LoopEnd = start, end
	return setup(t, s)
}

// psxInterleave is a stereo PS-ADPCM interleaved stream of frames per channel.
func psxInterleave(t testing.TB, framesPerChannel int, interleave int64, seed uint32) *Stream {
	t.Helper()
	s := New(2, false)
	s.Coding = coding.PSX
	s.Layout = LayoutInterleave
	s.Interleave = interleave
	s.SampleRate = 44100
	s.NumSamples = framesPerChannel * 28
	s.Meta = "test psx"
	sf := streamfile.FromBytes("test.vag", psxData(framesPerChannel*2, seed))
	if err := s.Open(sf, 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	return setup(t, s)
}

// halpstFile writes mono HALPST blocks of the given data sizes.
func halpstFile(sizes []int64, seed uint32) ([]byte, []byte) {
	var w chunkWriter
	var flat []byte
	for i, size := range sizes {
		start := w.off()
		next := start + 0x20 + size
		w.be32(uint32(size))
		w.be32(uint32(size))
		if i == len(sizes)-1 {
			w.be32(0xFFFFFFFF)
		} else {
			w.be32(uint32(next))
		}
		w.padTo(start + 0x20)
		data := dspData(int(size/8), seed+uint32(i))
		w.raw(data)
		flat = append(flat, data...)
	}
	return w.b, flat
}

func halpstStream(t testing.TB, sizes []int64, seed uint32) *Stream {
	t.Helper()
	file, _ := halpstFile(sizes, seed)
	s := New(1, false)
	s.Coding = coding.DSP
	s.Layout = LayoutBlocked
	s.Block.Updater = BlockHALPST
	s.SampleRate = 32000
	s.Meta = "test halpst"
	s.Ch[0].Coefs = testDSPCoefs
	if err := s.Open(streamfile.FromBytes("test.hps", file), 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	s.NumSamples = CountBlockedSamples(s)
	return setup(t, s)
}

func renderStream(s *Stream, frames int) []int16 {
	out := make([]int16, frames*s.Channels)
	s.Render(out, frames)
	return out
}

// renderChunks renders frames through c in uneven chunks and returns the
// output and the number of frames the controller produced.
func renderChunks(c *Controller, frames int) ([]int16, int) {
	ch := c.Channels()
	out := make([]int16, frames*ch)
	chunks := []int{1, 7, 300, 1024, 33, 4096}
	done := 0
	for i := 0; done < frames; i++ {
		n := min(chunks[i%len(chunks)], frames-done)
		got := c.Render(out[done*ch:], n)
		done += got
		if got < n {
			break
		}
	}
	return out[:done*ch], done
}

func firstDiff(a, b []int16) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	if len(a) != len(b) {
		return n
	}
	return -1
}
