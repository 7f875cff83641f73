package vgmstream

import (
	"strings"
	"testing"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
)

type blockVisit struct {
	index   int
	offset  int64
	samples int
}

// walkBlocks steps the updater through every block the way the layout does.
func walkBlocks(s *Stream) ([]blockVisit, int) {
	var got []blockVisit
	s.currentSample = 0
	s.Block.Phase = BlockFresh
	s.blockUpdate(s.Block.NextOffset)
	for s.Block.Phase != BlockFinished {
		n := s.blockSamples()
		got = append(got, blockVisit{s.Block.Index, s.Block.CurrentOffset, n})
		s.currentSample += n
		s.blockUpdate(s.Block.NextOffset)
		if len(got) > 1000 {
			break
		}
	}
	return got, s.Block.Index
}

type blockedCase struct {
	updater  BlockUpdater
	coding   coding.Type
	channels int
	config   func(s *Stream)
	file     func() ([]byte, []blockVisit)
}

func blockedCases() map[string]blockedCase {
	return map[string]blockedCase{
		"ast": {BlockAST, coding.PCM16BE, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			for i, size := range []int{0x20, 0x20, 0x10} {
				want = append(want, blockVisit{i, w.off(), size / 2})
				w.id("BLCK")
				w.be32(uint32(size))
				w.zeros(0x18)
				w.raw(noise(size*2, uint32(i)))
			}
			return w.b, want
		}},
		"halpst": {BlockHALPST, coding.DSP, 1, nil, func() ([]byte, []blockVisit) {
			file, _ := halpstFile([]int64{0x100, 0x100, 0x40}, 1)
			return file, []blockVisit{{0, 0, 448}, {1, 0x120, 448}, {2, 0x240, 112}}
		}},
		"emff ps2": {BlockEMFFPS2, coding.PSX, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			for i, size := range []int{0x40, 0x40, 0x20} {
				want = append(want, blockVisit{i, w.off(), size / 2 / 0x10 * 28})
				w.zeros(0x10)
				w.le32(uint32(size))
				w.zeros(0x0c)
				w.raw(psxData(size/0x10, uint32(i)))
			}
			return w.b, want
		}},
		"emff ngc": {BlockEMFFNGC, coding.DSP, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			for i, size := range []int{0x40, 0x40, 0x10} {
				want = append(want, blockVisit{i, w.off(), size / 2 / 8 * 14})
				w.zeros(0x20)
				w.be32(uint32(size))
				w.zeros(0x1c)
				w.raw(dspData(size/8, uint32(i)))
			}
			return w.b, want
		}},
		"ps2 iab": {BlockPS2IAB, coding.PSX, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			for i, size := range []int{0x40, 0x40, 0x20} {
				want = append(want, blockVisit{i, w.off(), size / 2 / 0x10 * 28})
				w.zeros(8)
				w.le32(uint32(size))
				w.le32(uint32(size + 0x10))
				w.raw(psxData(size/0x10, uint32(i)))
			}
			return w.b, want
		}},
		"wsi": {BlockWSI, coding.DSP, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			for i, per := range []int{0x20, 0x20, 0x10} {
				want = append(want, blockVisit{i, w.off(), per / 8 * 14})
				for ch := 0; ch < 2; ch++ {
					w.be32(uint32(per + 0x10))
					w.zeros(0x0c)
					w.raw(dspData(per/8, uint32(i*2+ch)))
				}
			}
			return w.b, want
		}},
		"xa": {BlockXA, coding.XA, 2, nil, func() ([]byte, []blockVisit) {
			return xaSectors([]uint16{0x0100, 0, 0x0100}, []byte{0x64, 0x08, 0x64}),
				[]blockVisit{{0, 0, 2016}, {1, 0x930, 0}, {2, 0x1260, 2016}}
		}},
		"xa target": {BlockXA, coding.XA, 2, func(s *Stream) {
			s.CodecConfig = XATargetEnable | 0x0100
		}, func() ([]byte, []blockVisit) {
			return xaSectors([]uint16{0x0100, 0x0101, 0x0100}, []byte{0x64, 0x64, 0x44}),
				[]blockVisit{{0, 0, 2016}, {1, 0x930, 0}, {2, 0x1260, 1792}}
		}},
		"str snds": {BlockSTRSNDS, coding.SDX2Int, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			ctrl := func() {
				w.id("CTRL")
				w.be32(0x20)
				w.zeros(0x18)
			}
			snds := func(i, data int) {
				want = append(want, blockVisit{i, w.off(), data / 2})
				w.id("SNDS")
				w.be32(uint32(0x28 + data))
				w.zeros(8)
				w.id("SSMP")
				w.be32(uint32(0x18 + data))
				w.zeros(0x10)
				w.raw(noise(data, uint32(i)))
			}
			ctrl()
			snds(0, 0x40)
			snds(1, 0x40)
			ctrl()
			snds(2, 0x20)
			return w.b, want
		}},
		"ea 1snh": {BlockEA1SNH, coding.PCM16Int, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			w.id("1SNh")
			w.le32(0x28)
			w.id("EACS")
			w.zeros(0x28 - 0x0c)
			want := []blockVisit{{0, 0, 0}}
			for i := 1; i <= 2; i++ {
				want = append(want, blockVisit{i, w.off(), 16})
				w.id("1SNd")
				w.le32(8 + 0x40)
				w.raw(noise(0x40, uint32(i)))
			}
			w.id("1SNe")
			w.le32(8)
			return w.b, want
		}},
		"ea schl": {BlockEASCHL, coding.PSX, 1, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			w.id("SCHl")
			w.le32(8)
			want := []blockVisit{{0, 0, 0}}
			for i := 1; i <= 2; i++ {
				want = append(want, blockVisit{i, w.off(), 56})
				w.id("SCDl")
				w.le32(0x10 + 0x20)
				w.le32(56)
				w.le32(0)
				w.raw(psxData(2, uint32(i)))
			}
			want = append(want, blockVisit{3, w.off(), 0})
			w.id("SCEl")
			w.le32(8)
			return w.b, want
		}},
		"ea swvr": {BlockEASWVR, coding.PSX, 1, func(s *Stream) {
			s.CodecBigEndian = true
		}, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			msic := func(i int) {
				want = append(want, blockVisit{i, w.off(), 56})
				w.id("MSIC")
				w.be32(0x1c + 0x20)
				w.zeros(0x1c - 8)
				w.raw(psxData(2, uint32(i)))
			}
			msic(0)
			want = append(want, blockVisit{1, w.off(), 0})
			w.id("FILL")
			w.be32(0x10)
			w.zeros(8)
			msic(2)
			w.be32(0xFFFFFFFF)
			w.be32(0)
			return w.b, want
		}},
		"rws": {BlockRWS, coding.PSX, 2, func(s *Stream) {
			s.Block.FullSize = 0x60
			s.Block.ChannelSize = 0x20
			s.Interleave = 0x30
		}, func() ([]byte, []blockVisit) {
			return psxData(0x120/0x10, 9), []blockVisit{{0, 0, 56}, {1, 0x60, 56}, {2, 0xc0, 56}}
		}},
		"ps2 adm": {BlockADM, coding.PSX, 2, func(s *Stream) {
			s.Block.FullSize = 0x40
			s.Block.Quirks = QuirkADMPadding
			s.Interleave = 0x20
		}, func() ([]byte, []blockVisit) {
			var w chunkWriter
			w.raw(psxData(8, 1))
			w.raw([]byte{0x00, 0x07})
			w.zeros(0x0e)
			w.raw(psxData(4, 2))
			return w.b, []blockVisit{{0, 0, 56}, {1, 0x40, 56}, {2, 0x90, 56}}
		}},
		"xvas": {BlockXVAS, coding.XboxIMA, 2, func(s *Stream) {
			s.Block.FullSize = 0xb0
			s.Block.Quirks = QuirkXVASGarbage
		}, func() ([]byte, []blockVisit) {
			return noise(3*0xb0, 4), []blockVisit{{0, 0, 128}, {1, 0xb0, 128}, {2, 0x160, 128}}
		}},
		"vid1": {BlockVID1, coding.PCM16BE, 1, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			for i := 0; i < 3; i++ {
				video := i != 1
				size := 0x20 + 0x30
				if video {
					size += 0x10
				}
				want = append(want, blockVisit{i, w.off(), 16})
				w.id("FRAM")
				w.be32(uint32(size))
				w.zeros(0x18)
				if video {
					w.id("VIDD")
					w.be32(0x10)
					w.zeros(8)
				}
				w.id("AUDD")
				w.be32(0x30)
				w.be32(0x20)
				w.zeros(4)
				w.raw(noise(0x20, uint32(i)))
			}
			return w.b, want
		}},
		"mxch": {BlockMXCH, coding.PCM16LE, 1, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			for i := 0; i < 3; i++ {
				if i == 1 {
					w.id("pad ")
					w.le32(4)
					w.zeros(4)
				}
				want = append(want, blockVisit{i, w.off(), 16})
				w.id("MxCh")
				w.le32(0x0e + 0x20)
				w.zeros(0x0e)
				w.raw(noise(0x20, uint32(i)))
			}
			return w.b, want
		}},
		"vgs": {BlockVGS, coding.PSX, 2, nil, func() ([]byte, []blockVisit) {
			return psxData(6, 5), []blockVisit{{0, 0, 28}, {1, 0x20, 28}, {2, 0x40, 28}}
		}},
		"caf": {BlockCAF, coding.DSP, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			for i, per := range []int{0x40, 0x40, 0x20} {
				start := w.off()
				want = append(want, blockVisit{i, start, per / 8 * 14})
				w.id("CFD ")
				w.be32(uint32(0x90 + 2*per))
				w.zeros(8)
				w.be32(0x90)
				w.be32(uint32(per))
				w.be32(uint32(0x90 + per))
				w.be32(uint32(per))
				w.padTo(start + 0x34)
				w.raw(gcwCoefs())
				w.padTo(start + 0x34 + 0x2c)
				w.raw(gcwCoefs())
				w.padTo(start + 0x90)
				w.raw(dspData(per/8, uint32(2*i)))
				w.raw(dspData(per/8, uint32(2*i+1)))
			}
			return w.b, want
		}},
		"dec": {BlockDEC, coding.PCM16Int, 2, func(s *Stream) {
			s.Block.FullSize = 0x100
		}, func() ([]byte, []blockVisit) {
			return noise(0x240, 6), []blockVisit{{0, 0, 64}, {1, 0x100, 64}, {2, 0x200, 16}}
		}},
		"xbox": {BlockXBOX, coding.XboxIMA, 2, nil, func() ([]byte, []blockVisit) {
			return noise(3*0x48, 7), []blockVisit{{0, 0, 64}, {1, 0x48, 64}, {2, 0x90, 64}}
		}},
		"ps2 strlr": {BlockPS2STRLR, coding.PSX, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			for i, per := range []int{0x20, 0x20, 0x10} {
				want = append(want, blockVisit{i, w.off(), per / 0x10 * 28})
				w.zeros(4)
				w.le32(uint32(per))
				w.zeros(0x18)
				w.raw(psxData(2*per/0x10, uint32(i)))
			}
			return w.b, want
		}},
		"sthd": {BlockSTHD, coding.PSX, 2, func(s *Stream) {
			s.Block.FullSize = 0x100
		}, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			for i, per := range []int{0x60, 0x60, 0x30} {
				start := w.off()
				want = append(want, blockVisit{i, start, per / 0x10 * 28})
				w.id("STHD")
				w.le16(0x20)
				w.padTo(start + 0x16)
				w.le16(uint16(per))
				w.padTo(start + 0x20)
				w.raw(psxData(2*per/0x10, uint32(i)))
				w.padTo(start + 0x100)
			}
			return w.b, want
		}},
		"filp": {BlockFILP, coding.PSX, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			for i, size := range []int{0x40, 0x40, 0x20} {
				start := w.off()
				want = append(want, blockVisit{i, start, size / 2 / 0x10 * 28})
				w.id("FILp")
				w.padTo(start + 0x18)
				w.le32(uint32(0x800 + size))
				w.padTo(start + 0x800)
				w.raw(psxData(size/0x10, uint32(i)))
			}
			return w.b, want
		}},
		"gsb": {BlockGSB, coding.PSX, 2, func(s *Stream) {
			s.Block.FullSize = 0x40
		}, func() ([]byte, []blockVisit) {
			var w chunkWriter
			for i := 0; i < 3; i++ {
				w.zeros(0x20)
				w.raw(psxData(4, uint32(i)))
			}
			return w.b, []blockVisit{{0, 0, 56}, {1, 0x60, 56}, {2, 0xc0, 56}}
		}},
		"mul": {BlockMUL, coding.PSX, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			audio := func(i, size int) {
				want = append(want, blockVisit{i, w.off(), size / 2 / 0x10 * 28})
				w.le32(0)
				w.le32(uint32(0x10 + size))
				w.zeros(8)
				w.le32(uint32(size))
				w.zeros(0x0c)
				w.raw(psxData(size/0x10, uint32(i)))
			}
			audio(0, 0x40)
			want = append(want, blockVisit{1, w.off(), 0})
			w.le32(1) // video
			w.le32(0x20)
			w.zeros(8 + 0x20)
			audio(2, 0x20)
			return w.b, want
		}},
		"vas": {BlockVAS, coding.PSX, 2, func(s *Stream) {
			s.Block.FullSize = 0x80
		}, func() ([]byte, []blockVisit) {
			return psxData(0x140/0x10, 8), []blockVisit{{0, 0, 112}, {1, 0x80, 112}, {2, 0x100, 56}}
		}},
		"xa aiff": {BlockXAAIFF, coding.XA, 2, nil, func() ([]byte, []blockVisit) {
			return noise(3*0x914, 2), []blockVisit{{0, 0, 2016}, {1, 0x914, 2016}, {2, 0x1228, 2016}}
		}},
		"xwav": {BlockXWAV, coding.PSX, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			var want []blockVisit
			for i, size := range []int{0x40, 0x40, 0x40} {
				samples := size / 2 / 0x10 * 28
				if i == 2 {
					// a short last block
					samples = 30
				}
				want = append(want, blockVisit{i, w.off(), samples})
				w.le32(uint32(0x10 + size))
				w.le32(uint32(samples))
				w.zeros(8)
				w.raw(psxData(size/0x10, uint32(i)))
			}
			return w.b, want
		}},
		"ea sns": {BlockEASNS, coding.PCM16Int, 2, nil, func() ([]byte, []blockVisit) {
			var w chunkWriter
			want := []blockVisit{{0, 0, 16}, {1, 0x48, 0}, {2, 0x50, 8}}
			w.be32(0x48)
			w.be32(16)
			w.raw(noise(0x40, 1))
			w.be32(0x48<<24 | 8) // SPS header block
			w.zeros(4)
			w.be32(0x80<<24 | 0x28)
			w.be32(8)
			w.raw(noise(0x20, 2))
			return w.b, want
		}},
		"snd gcw str": {BlockSNDGCWSTR, coding.DSP, 2, func(s *Stream) {
			s.Block.GCW = &GCWStr{
				BlockSize:         0x40,
				FirstHeaderSize:   0x20,
				FirstBlockSize:    0x20,
				FirstBlockSamples: 56,
				LastBlockSize:     0x10,
				LastBlockSamples:  28,
				BlockSamples:      112,
				Blocks:            3,
			}
		}, func() ([]byte, []blockVisit) {
			var w chunkWriter
			w.raw(gcwCoefs())
			w.raw(dspData(4, 1))
			w.zeros(0x20) // blank coefficients of channel 1
			w.raw(dspData(4, 2))
			w.raw(dspData(16, 3))
			w.raw(dspData(16, 4))
			return w.b, []blockVisit{{0, 0, 56}, {1, 0x80, 112}, {2, 0x100, 28}}
		}},
	}
}

func gcwCoefs() []byte {
	var w chunkWriter
	for i := 0; i < 16; i++ {
		w.be16(uint16(100 * (i + 1)))
	}
	return w.b
}

func xaSectors(targets []uint16, submodes []byte) []byte {
	var w chunkWriter
	for i, sub := range submodes {
		start := w.off()
		w.zeros(0x10)
		w.be16(targets[i])
		w.u8(sub)
		w.padTo(start + 0x930)
	}
	return w.b
}

func newBlockedStream(t *testing.T, tc blockedCase, file []byte, samples int) *Stream {
	t.Helper()
	s := New(tc.channels, false)
	s.Coding = tc.coding
	s.Layout = LayoutBlocked
	s.Block.Updater = tc.updater
	s.SampleRate = 32000
	s.NumSamples = samples
	for i := range s.Ch {
		s.Ch[i].Coefs = testDSPCoefs
	}
	if tc.config != nil {
		tc.config(s)
	}
	if err := s.Open(streamfile.FromBytes("blocked.bin", file), 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	return setup(t, s)
}

func TestBlockUpdaters(t *testing.T) {
	for name, tc := range blockedCases() {
		t.Run(name, func(t *testing.T) {
			file, want := tc.file()
			total := 0
			for _, v := range want {
				total += v.samples
			}
			s := newBlockedStream(t, tc, file, total)

			if got := CountBlockedSamples(s); got != total {
				t.Errorf("CountBlockedSamples = %d, want %d", got, total)
			}

			got, last := walkBlocks(s)
			if len(got) != len(want) {
				t.Fatalf("visited %d blocks %v, want %d %v", len(got), got, len(want), want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("block %d = %+v, want %+v", i, got[i], want[i])
				}
			}
			if last != len(want) {
				t.Errorf("terminal block index = %d, want %d", last, len(want))
			}

			s.Reset()
			c := NewController(s, nil)
			if _, n := renderChunks(c, total+100); n != total {
				t.Errorf("rendered %d frames, want %d", n, total)
			}
			if !c.IsFinished() {
				t.Error("IsFinished = false at the end")
			}
		})
	}
}

func TestGCWCoefficients(t *testing.T) {
	tc := blockedCases()["snd gcw str"]
	file, _ := tc.file()
	s := newBlockedStream(t, tc, file, 196)
	walkBlocks(s)

	coefs := gcwCoefs()
	for i := range 16 {
		want := int16(uint16(coefs[i*2])<<8 | uint16(coefs[i*2+1]))
		if s.Ch[0].Coefs[i] != want {
			t.Fatalf("channel 0 coef %d = %d, want %d", i, s.Ch[0].Coefs[i], want)
		}
	}
	// the first block always loads, even a zeroed header
	if s.Ch[1].Coefs != [16]int16{} {
		t.Errorf("channel 1 coefficients = %v, want the zeroed header", s.Ch[1].Coefs)
	}

	// a second pass over the first block keeps what was loaded
	s.Ch[0].Coefs = testDSPCoefs
	walkBlocks(s)
	if s.Ch[0].Coefs != testDSPCoefs {
		t.Errorf("coefficients reloaded on a later visit: %v", s.Ch[0].Coefs)
	}

	// Reset goes back to the state before the first block
	s.Reset()
	walkBlocks(s)
	if s.Ch[0].Coefs[0] != 100 {
		t.Errorf("after Reset coef 0 = %d, want 100", s.Ch[0].Coefs[0])
	}
}

func TestGCWBlankSpace(t *testing.T) {
	tc := blockedCases()["snd gcw str"]
	file, _ := tc.file()
	blank := append([]byte(nil), file...)
	// zero the words after channel 1's coefficients at 0x40
	copy(blank[0x60:0x80], make([]byte, 0x20))

	s := newBlockedStream(t, tc, file, 196)
	if s.gcwBlankSpace(0) || s.gcwBlankSpace(0x40) {
		t.Error("blank space reported before audio data")
	}
	b := newBlockedStream(t, tc, blank, 196)
	if !b.gcwBlankSpace(0x40) {
		t.Error("blank space after channel 1 coefficients not found")
	}
}

func TestCAFCoefficients(t *testing.T) {
	tc := blockedCases()["caf"]
	file, _ := tc.file()
	s := newBlockedStream(t, tc, file, 280)
	s.Block.Phase = BlockFresh
	s.blockUpdate(0)

	for ch := range s.Ch {
		if s.Ch[ch].Coefs[0] != 100 || s.Ch[ch].Coefs[15] != 1600 {
			t.Errorf("channel %d coefs = %v", ch, s.Ch[ch].Coefs)
		}
	}
	if s.Ch[0].Offset != 0x90 || s.Ch[1].Offset != 0xd0 {
		t.Errorf("channel offsets = %#x, %#x", s.Ch[0].Offset, s.Ch[1].Offset)
	}
}

func TestEASNSDSPHeader(t *testing.T) {
	var w chunkWriter
	w.be32(0x08 + 0x60 + 0x40)
	w.be32(14 * 4)
	// channel start (from 0x08), unknown, unknown, interleave
	w.be32(0x60)
	w.zeros(8)
	w.be32(0x20)
	w.raw(gcwCoefs())
	w.be16(0x0123) // hist1
	w.be16(0x0456) // hist2
	w.zeros(0x28 - 0x20 - 4)
	w.raw(gcwCoefs())
	w.be16(0x0789)
	w.be16(0x0abc)
	w.padTo(0x68)
	w.raw(dspData(8, 3))

	tc := blockedCase{updater: BlockEASNS, coding: coding.DSP, channels: 2}
	s := newBlockedStream(t, tc, w.b, 56)
	s.Block.Phase = BlockFresh
	s.blockUpdate(0)

	if s.blockSamples() != 56 {
		t.Errorf("block samples = %d, want 56", s.blockSamples())
	}
	if s.Ch[0].Offset != 0x68 || s.Ch[1].Offset != 0x88 {
		t.Errorf("channel offsets = %#x, %#x", s.Ch[0].Offset, s.Ch[1].Offset)
	}
	if s.Ch[1].Coefs[1] != 200 || s.Ch[0].Hist1 != 0x0123 || s.Ch[1].Hist2 != 0x0abc {
		t.Errorf("channel state = %v %d, %v %d", s.Ch[0].Coefs, s.Ch[0].Hist1, s.Ch[1].Coefs, s.Ch[1].Hist2)
	}
}

func TestHALPSTHistoryCarry(t *testing.T) {
	sizes := []int64{0x2000, 0x2000, 0x0400}
	s := halpstStream(t, sizes, 11)
	if want := (0x4400 / 8) * 14; s.NumSamples != want {
		t.Fatalf("NumSamples = %d, want %d", s.NumSamples, want)
	}

	_, flat := halpstFile(sizes, 11)
	m := New(1, false)
	m.Coding = coding.DSP
	m.SampleRate = 32000
	m.NumSamples = s.NumSamples
	m.Ch[0].Coefs = testDSPCoefs
	if err := m.Open(streamfile.FromBytes("flat.dsp", flat), 0); err != nil {
		t.Fatal(err)
	}
	setup(t, m)

	got, n := renderChunks(NewController(s, nil), s.NumSamples)
	if n != s.NumSamples {
		t.Fatalf("rendered %d frames, want %d", n, s.NumSamples)
	}
	want := renderStream(m, m.NumSamples)
	if i := firstDiff(got, want); i >= 0 {
		t.Fatalf("sample %d = %d, want %d (third block starts at %d)", i, got[i], want[i], 2*14336)
	}
}

// spyCodec reads one byte per sample from the first cursor and records
// where it was flushed.
type spyCodec struct {
	decoded int
	flushes []int
}

func (c *spyCodec) Decode(chs []coding.ChannelState, out []int16, samples int) {
	st := &chs[0]
	for i := 0; i < samples; i++ {
		v, _ := st.SF.U8(st.Offset)
		out[i] = int16(v)
		st.Offset++
	}
	c.decoded += samples
}

func (c *spyCodec) Reset([]coding.ChannelState) {}
func (c *spyCodec) Flush()                      { c.flushes = append(c.flushes, c.decoded) }
func (c *spyCodec) Close() error                { return nil }

func TestEASCHLSubfileRestart(t *testing.T) {
	const n = 100
	var w chunkWriter
	value := 1
	for sub := 0; sub < 2; sub++ {
		w.id("SCHl")
		w.le32(8)
		w.id("SCDl")
		w.le32(0x10 + n)
		w.le32(n)
		w.le32(0)
		for i := 0; i < n; i++ {
			w.u8(byte(value))
			value++
		}
		w.id("SCEl")
		w.le32(8)
	}

	spy := &spyCodec{}
	s := New(1, false)
	s.Coding = coding.MPEG
	s.Codec = spy
	s.Layout = LayoutBlocked
	s.Block.Updater = BlockEASCHL
	s.Block.NextOffset = 8 // parsers start past the first header
	s.SampleRate = 48000
	s.NumSamples = 2 * n
	if err := s.Open(w.source("s5.sng"), 0); err != nil {
		t.Fatal(err)
	}
	setup(t, s)

	out, got := renderChunks(NewController(s, nil), 2*n+50)
	if got != 2*n {
		t.Fatalf("rendered %d frames, want %d", got, 2*n)
	}
	for i, v := range out {
		if v != int16(i+1) {
			t.Fatalf("sample %d = %d, want %d", i, v, i+1)
		}
	}
	if len(spy.flushes) != 1 || spy.flushes[0] != n {
		t.Errorf("flushes at %v, want [%d]", spy.flushes, n)
	}
}

func TestBlockedLoopFlushesCodec(t *testing.T) {
	var w chunkWriter
	for i := 0; i < 3; i++ {
		w.id("SCDl")
		w.le32(0x10 + 0x20)
		w.le32(0x20)
		w.le32(0)
		w.raw(noise(0x20, uint32(i)))
	}

	spy := &spyCodec{}
	s := New(1, true)
	s.Coding = coding.MPEG
	s.Codec = spy
	s.Layout = LayoutBlocked
	s.Block.Updater = BlockEASCHL
	s.SampleRate = 48000
	s.NumSamples = 3 * 0x20
	s.LoopStart, s.LoopEnd = 0x20, 0x60
	if err := s.Open(w.source("loop.sng"), 0); err != nil {
		t.Fatal(err)
	}
	setup(t, s)

	out := renderStream(s, 0x60+0x40)
	if i := firstDiff(out[0x20:0x60], out[0x60:0xa0]); i >= 0 {
		t.Fatalf("loop pass differs at %d", i)
	}
	if len(spy.flushes) != 1 || spy.flushes[0] != 0x60 {
		t.Errorf("flushes at %v, want [%d]", spy.flushes, 0x60)
	}
}

func TestCorruptBlockEndsStream(t *testing.T) {
	file, _ := halpstFile([]int64{0x100, 0x100}, 3)
	// point the first block beyond the end of the file
	file[8], file[9], file[10], file[11] = 0x00, 0x10, 0x00, 0x00

	s := New(1, false)
	s.Coding = coding.DSP
	s.Layout = LayoutBlocked
	s.Block.Updater = BlockHALPST
	s.SampleRate = 32000
	s.NumSamples = 896
	if err := s.Open(streamfile.FromBytes("bad.hps", file), 0); err != nil {
		t.Fatal(err)
	}
	setup(t, s)

	out := renderStream(s, 896)
	if !s.Finished() {
		t.Error("Finished = false after a terminal block")
	}
	for i := 448; i < 896; i++ {
		if out[i] != 0 {
			t.Fatalf("sample %d = %d after terminal block, want silence", i, out[i])
		}
	}
}

func TestUpdaterNames(t *testing.T) {
	for u := BlockNone; u <= BlockEASNS; u++ {
		if strings.HasPrefix(u.String(), "updater(") {
			t.Errorf("updater %d has no name", int(u))
		}
	}
	if got := BlockUpdater(999).String(); got != "updater(999)" {
		t.Errorf("unknown updater = %q", got)
	}
}
