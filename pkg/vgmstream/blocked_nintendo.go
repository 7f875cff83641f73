package vgmstream

import "log/slog"

// updateAST walks "BLCK" chunks: per channel size at 0x04, 0x20 byte header,
// then each channel's data in turn.
func (s *Stream) updateAST(off int64) {
	b := &s.Block
	size := int64(s.u32be(off + 4))
	b.CurrentOffset = off
	b.NextOffset = off + size*int64(s.Channels) + 0x20
	s.setBlockData(off+0x20, size*int64(s.Channels))
}

// updateHALPST walks HALPST blocks: total data size, then the absolute
// offset of the next block (-1 ends the stream) and per channel DSP state.
func (s *Stream) updateHALPST(off int64) {
	b := &s.Block
	ch := int64(s.Channels)
	header := (4 + 8*ch + 0x1f) / 0x20 * 0x20

	b.CurrentOffset = off
	b.NextOffset = int64(int32(s.u32be(off + 8)))
	s.setBlockData(off+header, int64(s.u32be(off))/ch*ch)
}

// updateEMFF walks EMFF blocks. The NGC flavour is big endian with a larger
// header.
func (s *Stream) updateEMFF(off int64, ngc bool) {
	b := &s.Block
	var size, header int64
	if ngc {
		size = int64(s.u32be(off + 0x20))
		header = 0x40
	} else {
		size = int64(s.u32le(off + 0x10))
		header = 0x20
	}
	b.CurrentOffset = off
	b.NextOffset = off + size + header
	s.setBlockData(off+header, size)
}

// updateWSI walks WSI blocks: each channel's run starts with a 0x10 byte
// header whose first field is the run size.
func (s *Stream) updateWSI(off int64) {
	b := &s.Block
	run := int64(s.u32be(off))
	b.CurrentOffset = off
	b.NextOffset = off + run*int64(s.Channels)
	b.CurrentSize = run - 0x10
	if run < 0x10 {
		b.CurrentSize = 0
	}
	for i := range s.Ch {
		s.Ch[i].Offset = off + run*int64(i) + 0x10
	}
}

// updateSNDGCWSTR walks GameCube SND+STR blocks. The first block carries a
// per channel header with the DSP coefficients, the last one is short.
func (s *Stream) updateSNDGCWSTR(off int64) {
	b := &s.Block
	g := b.GCW
	if g == nil {
		b.CurrentSamples = -1
		return
	}

	first := s.currentSample < g.FirstBlockSamples
	last := !first && s.currentSample >= s.NumSamples-g.LastBlockSamples

	b.CurrentOffset = off
	b.NextOffset = off + g.BlockSize*int64(s.Channels)
	switch {
	case first:
		b.CurrentSize = g.FirstBlockSize
		b.CurrentSamples = g.FirstBlockSamples
	case last:
		b.CurrentSize = g.LastBlockSize
		b.CurrentSamples = g.LastBlockSamples
	default:
		b.CurrentSize = g.BlockSize
		b.CurrentSamples = g.BlockSamples
	}

	for i := range s.Ch {
		ii := int64(i)
		switch {
		case first:
			hdr := off + (g.FirstHeaderSize+g.FirstBlockSize)*ii
			if !b.gcwCoefsRead {
				for k := range s.Ch[i].Coefs {
					s.Ch[i].Coefs[k] = s.s16be(hdr + int64(k)*2)
				}
				if !s.gcwBlankSpace(hdr) {
					slog.Debug("snd gcw str: no blank space after coefficients", "channel", i, "offset", hdr)
				}
			}
			s.Ch[i].Offset = hdr + g.FirstHeaderSize
		case last && g.Blocks == 2:
			s.Ch[i].Offset = off + g.LastBlockSize*ii
		default:
			s.Ch[i].Offset = off + g.BlockSize*ii
		}
	}
	if first {
		b.gcwCoefsRead = true
	}
}

// gcwBlankSpace reports a first block header with sixteen zero words after
// the coefficients.
func (s *Stream) gcwBlankSpace(hdr int64) bool {
	for k := int64(0); k < 16; k++ {
		if s.s16be(hdr+0x20+k*2) != 0 {
			return false
		}
	}
	return true
}

// updateCAF walks "CFD " blocks: block size at 0x04, then an offset and
// size pair per channel from 0x10 and each channel's DSP coefficients from
// 0x34, 0x2c bytes apart.
func (s *Stream) updateCAF(off int64) {
	b := &s.Block
	b.CurrentOffset = off
	b.NextOffset = off + int64(s.u32be(off+4))
	b.CurrentSize = int64(s.u32be(off + 0x14))
	for i := range s.Ch {
		ii := int64(i)
		s.Ch[i].Offset = off + int64(s.u32be(off+0x10+8*ii))
		for k := range s.Ch[i].Coefs {
			s.Ch[i].Coefs[k] = s.s16be(off + 0x34 + 0x2c*ii + int64(k)*2)
		}
	}
}
