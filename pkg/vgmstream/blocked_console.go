package vgmstream

import "github.com/drgolem/vgmtools/pkg/coding"

// updateVGS walks Harmonix VGS mini blocks: one 0x10 byte PS-ADPCM frame
// per channel.
func (s *Stream) updateVGS(off int64) {
	b := &s.Block
	const frame = 0x10
	b.CurrentOffset = off
	b.NextOffset = off + frame*int64(s.Channels)
	b.CurrentSize = frame
	for i := range s.Ch {
		s.Ch[i].Offset = off + frame*int64(i)
	}
}

// updateFixed walks headerless blocks of FullSize bytes (def when unset)
// split among the channels. The last block stops at the end of the file.
func (s *Stream) updateFixed(off, def int64) {
	b := &s.Block
	full := b.FullSize
	if full <= 0 {
		full = def
	}
	size := min(full, s.Ch[0].SF.Size()-off)
	b.CurrentOffset = off
	b.NextOffset = off + full
	s.setBlockData(off, size/int64(s.Channels)*int64(s.Channels))
}

// updateXBOX walks Xbox IMA blocks of one 0x24 byte frame per channel.
func (s *Stream) updateXBOX(off int64) {
	b := &s.Block
	size := 0x24 * int64(s.Channels)
	b.CurrentOffset = off
	b.NextOffset = off + size
	s.setBlockData(off, size)
}

// updatePS2STRLR walks blocks with a 0x20 byte header holding the per
// channel size at 0x04.
func (s *Stream) updatePS2STRLR(off int64) {
	b := &s.Block
	per := int64(s.u32le(off + 4))
	b.CurrentOffset = off
	b.NextOffset = off + 0x20 + per*int64(s.Channels)
	b.CurrentSize = per
	for i := range s.Ch {
		s.Ch[i].Offset = off + 0x20 + per*int64(i)
	}
}

// updateSTHD walks "STHD" blocks of FullSize bytes (0x800 by default). The
// header size is at 0x04 and the per channel size at 0x16.
func (s *Stream) updateSTHD(off int64) {
	b := &s.Block
	full := b.FullSize
	if full <= 0 {
		full = 0x800
	}
	b.CurrentOffset = off
	b.NextOffset = off + full
	if s.u32be(off) != id32("STHD") {
		b.CurrentSamples = -1
		return
	}
	header := int64(s.u16le(off + 4))
	per := int64(s.u16le(off + 0x16))
	b.CurrentSize = per
	for i := range s.Ch {
		s.Ch[i].Offset = off + header + per*int64(i)
	}
}

// updateFILP walks FILp blocks: a 0x800 byte header whose size field at
// 0x18 includes the header.
func (s *Stream) updateFILP(off int64) {
	b := &s.Block
	size := int64(s.u32le(off+0x18)) - 0x800
	b.CurrentOffset = off
	b.NextOffset = off + 0x800 + max(size, 0)
	s.setBlockData(off+0x800, size)
}

// updateGSB walks GSB blocks: a 0x20 byte header then FullSize (0x10000 by
// default) bytes of audio.
func (s *Stream) updateGSB(off int64) {
	b := &s.Block
	full := b.FullSize
	if full <= 0 {
		full = 0x10000
	}
	size := min(full, s.Ch[0].SF.Size()-off-0x20)
	b.CurrentOffset = off
	b.NextOffset = off + 0x20 + full
	s.setBlockData(off+0x20, size/int64(s.Channels)*int64(s.Channels))
}

// updateMUL walks Crystal Dynamics MUL blocks: type and size after a 0x10
// byte header. Audio blocks (type 0) open with a data size and a sub
// header, 0x20 bytes for DSP and 0x10 otherwise.
func (s *Stream) updateMUL(off int64) {
	b := &s.Block
	const header = 0x10
	kind := s.read32(off)
	size := int64(s.read32(off + 4))

	b.CurrentOffset = off
	b.NextOffset = off + header + size
	b.CurrentSize = 0
	b.CurrentSamples = 0
	if kind != 0 || size == 0 {
		return
	}

	sub := int64(0x10)
	if s.Coding == coding.DSP {
		sub = 0x20
	}
	s.setBlockData(off+header+sub, int64(s.read32(off+header)))
}

// updateXWAV walks XWAV blocks: a 0x10 byte header holding the block size
// (header included) and the block's sample count; channels split the rest.
func (s *Stream) updateXWAV(off int64) {
	b := &s.Block
	size := int64(s.u32le(off))
	b.CurrentOffset = off
	if size < 0x10 {
		b.NextOffset = off
		b.CurrentSamples = -1
		return
	}
	b.NextOffset = off + size
	s.setBlockData(off+0x10, size-0x10)
	if n := int(s.u32le(off + 4)); n > 0 && n < b.CurrentSamples {
		b.CurrentSamples = n
	}
}
