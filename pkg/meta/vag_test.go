package meta

import (
	"testing"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

// psxFrames returns PS-ADPCM frames with flag bytes set per flags (by frame
// index).
func psxFrames(n int, flags map[int]byte) []byte {
	out := make([]byte, n*0x10)
	for f := 0; f < n; f++ {
		out[f*0x10] = byte(f%4)<<4 | 6
		out[f*0x10+1] = flags[f]
		for i := 2; i < 0x10; i++ {
			out[f*0x10+i] = byte(f*13 + i*7)
		}
	}
	return out
}

func vagFile(version uint32, channels byte, data []byte) []byte {
	var w chunkWriter
	w.id("VAGp")
	w.be32(version)
	w.zeros(4)
	w.be32(uint32(len(data)))
	w.be32(44100)
	w.zeros(0x0a)
	w.u8(channels, 0)
	w.id("jingle\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")
	w.padTo(0x30)
	w.raw(data)
	return w.b
}

func TestVAGMono(t *testing.T) {
	data := psxFrames(10, map[int]byte{2: 0x06, 5: 0x03})
	s := mustOpen(t, "jingle.vag", vagFile(0x20, 0, data))

	if s.Coding != coding.PSX || s.Channels != 1 || s.Layout != vgmstream.LayoutFlat {
		t.Fatalf("coding %v channels %d layout %v", s.Coding, s.Channels, s.Layout)
	}
	if s.NumSamples != 10*28 {
		t.Errorf("NumSamples = %d, want %d", s.NumSamples, 10*28)
	}
	if !s.LoopFlag || s.LoopStart != 2*28 || s.LoopEnd != 6*28 {
		t.Errorf("loop = %v %d..%d, want 56..168", s.LoopFlag, s.LoopStart, s.LoopEnd)
	}
	if s.Name != "jingle" {
		t.Errorf("Name = %q", s.Name)
	}
}

func TestVAGNoLoopFlags(t *testing.T) {
	s := mustOpen(t, "sfx.vag", vagFile(0x20, 0, psxFrames(8, nil)))
	if s.LoopFlag {
		t.Errorf("unexpected loop %d..%d", s.LoopStart, s.LoopEnd)
	}
}

func TestVAGVitaStereo(t *testing.T) {
	data := psxFrames(20, nil)
	s := mustOpen(t, "vita.vag", vagFile(0x00020001, 2, data))
	if s.Channels != 2 || s.Layout != vgmstream.LayoutInterleave || s.Interleave != 0x10 {
		t.Fatalf("channels %d layout %v interleave %#x", s.Channels, s.Layout, s.Interleave)
	}
	if s.NumSamples != 10*28 {
		t.Errorf("NumSamples = %d, want %d", s.NumSamples, 10*28)
	}
}

func TestPSFindLoop(t *testing.T) {
	tests := []struct {
		name       string
		flags      map[int]byte
		channels   int
		interleave int64
		wantOK     bool
		wantStart  int
		wantEnd    int
	}{
		{"start and end", map[int]byte{1: 0x06, 4: 0x03}, 1, 0, true, 28, 140},
		{"end only", map[int]byte{4: 0x03}, 1, 0, false, 0, 0},
		{"chained pairs keep scanning", map[int]byte{0: 0x06, 2: 0x03, 3: 0x06, 6: 0x03}, 1, 0, true, 0, 7 * 28},
		// stereo: frames alternate left/right every 0x10 bytes
		{"stereo uses first channel", map[int]byte{2: 0x06, 3: 0x02, 6: 0x03}, 2, 0x10, true, 28, 4 * 28},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := psxFrames(10, tt.flags)
			sf := streamfile.FromBytes("x.vag", data)
			start, end, ok := psFindLoop(sf, 0, int64(len(data)), tt.channels, tt.interleave)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (start != tt.wantStart || end != tt.wantEnd) {
				t.Errorf("loop = %d..%d, want %d..%d", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
