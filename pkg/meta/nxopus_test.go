package meta

import (
	"testing"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
)

// nxOpusFile writes a Switch Opus file of packets. TOC 0xF8 is a single
// 20 ms CELT frame (960 samples), 0xF9 two of them.
func nxOpusFile(channels byte, preSkip uint32, packets [][]byte) []byte {
	var w chunkWriter
	w.le32(nxOpusHeaderID)
	w.le32(0x18)
	w.u8(0, channels)
	w.le16(0)
	w.le32(48000)
	w.le32(0x28)
	w.zeros(8)
	w.le32(preSkip)
	w.padTo(0x28)

	var data chunkWriter
	for _, p := range packets {
		data.be32(uint32(len(p)))
		data.be32(0)
		data.raw(p)
	}
	w.le32(nxOpusDataID)
	w.le32(uint32(data.off()))
	w.raw(data.b)
	return w.b
}

func TestNXOpus(t *testing.T) {
	packets := [][]byte{
		{0xF8, 0x11, 0x22, 0x33},
		{0xF9, 0x11, 0x22, 0x33, 0x44},
		{0xF8, 0x55},
	}
	s := mustOpen(t, "voice.opus", nxOpusFile(2, 312, packets))

	if s.Coding != coding.Opus || s.Channels != 2 || s.SampleRate != 48000 {
		t.Fatalf("coding %v %d ch %d Hz", s.Coding, s.Channels, s.SampleRate)
	}
	if want := 4*960 - 312; s.NumSamples != want {
		t.Errorf("NumSamples = %d, want %d", s.NumSamples, want)
	}
	if s.Ch[0].StartOffset != 0x30 {
		t.Errorf("first packet at %#x, want 0x30", s.Ch[0].StartOffset)
	}
}

func TestNXOpusErrors(t *testing.T) {
	tests := []struct {
		name string
		file []byte
		want vgmerr.Kind
	}{
		{"six channels", nxOpusFile(6, 0, [][]byte{{0xF8, 0}}), vgmerr.UnsupportedCodec},
		{"zero sized packet", nxOpusFile(1, 0, [][]byte{{}}), vgmerr.MalformedHeader},
		{"bad data chunk", func() []byte {
			b := nxOpusFile(1, 0, [][]byte{{0xF8, 0}})
			b[0x28] = 0
			return b
		}(), vgmerr.MalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := initNXOpus(streamfile.FromBytes("x.opus", tt.file))
			if got := vgmerr.KindOf(err); got != tt.want {
				t.Errorf("kind = %v, want %v (%v)", got, tt.want, err)
			}
		})
	}
}
