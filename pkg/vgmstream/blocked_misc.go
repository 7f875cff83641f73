package vgmstream

import (
	"github.com/drgolem/vgmtools/pkg/coding"
)

// XATargetEnable in CodecConfig restricts XA to sectors whose file and
// channel bytes (low 16 bits) match.
const XATargetEnable = 1 << 16

// setBlockData points the cursors at size bytes of audio starting at data,
// split evenly among channels unless the codec reads all channels from one
// cursor. The block sample count follows from the per channel size.
func (s *Stream) setBlockData(data, size int64) {
	b := &s.Block
	if size < 0 {
		b.CurrentSize = -1
		return
	}
	per := size / int64(s.Channels)
	shared := s.Coding.SharedCursor(s.Channels)
	for i := range s.Ch {
		if shared {
			s.Ch[i].Offset = data + s.channelStart(i)
		} else {
			s.Ch[i].Offset = data + per*int64(i)
		}
	}
	b.CurrentSize = per
	b.CurrentSamples = int(coding.BytesToSamples(s.Coding, per, s.Channels))
}

// updateXA walks raw CD-XA sectors. Only audio sectors of the selected
// file/channel produce samples.
func (s *Stream) updateXA(off int64) {
	b := &s.Block
	const sectorSize = 0x930

	submode := s.u8(off + 0x12)
	audio := submode&0x04 != 0 && submode&0x08 == 0
	if audio && s.CodecConfig&XATargetEnable != 0 {
		audio = uint32(s.u16be(off+0x10)) == s.CodecConfig&0xFFFF
	}

	b.CurrentOffset = off
	b.NextOffset = off + sectorSize
	b.CurrentSize = 0
	b.CurrentSamples = 0
	if !audio {
		return
	}

	frames := 16
	if submode&0x20 != 0 {
		frames = 18
	}
	b.CurrentSamples = s.Coding.SamplesPerFrame(s.Channels) * frames
	for i := range s.Ch {
		s.Ch[i].Offset = off + 0x18
	}
}

// updateXAAIFF walks the XA blocks of AIFF-C "APCM" files: 0x914 byte
// groups of 18 sound frames with no sector headers.
func (s *Stream) updateXAAIFF(off int64) {
	b := &s.Block
	b.CurrentOffset = off
	b.NextOffset = off + 0x914
	b.CurrentSize = 0
	b.CurrentSamples = s.Coding.SamplesPerFrame(s.Channels) * 18
	for i := range s.Ch {
		s.Ch[i].Offset = off
	}
}

// updateSTRSNDS walks 3DO STR chunks up to the next SNDS chunk holding an
// SSMP sample block.
func (s *Stream) updateSTRSNDS(off int64) {
	b := &s.Block
	size := s.Ch[0].SF.Size()

	cur := off
	for {
		if cur+0x20 > size {
			b.CurrentOffset = cur
			b.NextOffset = cur
			b.CurrentSamples = -1
			return
		}
		chunk := int64(s.u32be(cur + 4))
		if s.u32be(cur) == id32("SNDS") && s.u32be(cur+0x10) == id32("SSMP") {
			break
		}
		if chunk <= 0 {
			b.CurrentOffset = cur
			b.NextOffset = cur
			b.CurrentSamples = -1
			return
		}
		cur += chunk
	}

	ssmp := cur + 0x10
	ssmpSize := int64(s.u32be(ssmp + 4))
	b.CurrentOffset = cur
	b.NextOffset = ssmp + ssmpSize
	s.setBlockData(ssmp+0x18, ssmpSize-0x18)
}

// updateRWS walks headerless fixed blocks: FullSize stride, Interleave per
// channel of which ChannelSize is audio and the rest padding.
func (s *Stream) updateRWS(off int64) {
	b := &s.Block
	b.CurrentOffset = off
	b.NextOffset = off + b.FullSize
	b.CurrentSize = b.ChannelSize
	if b.CurrentSize <= 0 {
		b.CurrentSize = s.Interleave
	}
	for i := range s.Ch {
		s.Ch[i].Offset = off + s.Interleave*int64(i)
	}
}

// updateVID1 walks VID1 "FRAM" blocks and takes the audio from their AUDD
// subchunk.
func (s *Stream) updateVID1(off int64) {
	b := &s.Block
	if s.u32be(off) != id32("FRAM") {
		b.CurrentOffset = off
		b.NextOffset = off
		b.CurrentSamples = -1
		return
	}
	size := int64(s.u32be(off + 4))
	b.CurrentOffset = off
	b.NextOffset = off + size
	b.CurrentSize = 0

	for cur := off + 0x20; cur+0x10 <= off+size; {
		sub := int64(s.u32be(cur + 4))
		if s.u32be(cur) == id32("AUDD") {
			s.setBlockData(cur+0x10, int64(s.u32be(cur+8)))
			return
		}
		if sub <= 0 {
			break
		}
		cur += sub
	}
}

// updateADM walks headerless FullSize blocks split in Interleave sized runs
// per channel.
func (s *Stream) updateADM(off int64) {
	b := &s.Block
	full := b.FullSize
	if full <= 0 {
		full = 0x1000
	}
	next := off + full
	if b.Quirks&QuirkADMPadding != 0 {
		// skip end-of-data PS-ADPCM frames between blocks
		end := s.Ch[0].SF.Size()
		for next+0x10 <= end && s.u8(next+1) == 0x07 {
			next += 0x10
		}
	}

	b.CurrentOffset = off
	b.NextOffset = next
	b.CurrentSize = s.Interleave
	for i := range s.Ch {
		s.Ch[i].Offset = off + s.Interleave*int64(i)
	}
}

// updateXVAS walks 0x20000 byte blocks of Xbox IMA sharing one cursor.
func (s *Stream) updateXVAS(off int64) {
	b := &s.Block
	full := b.FullSize
	if full <= 0 {
		full = 0x20000
	}
	usable := full
	if b.Quirks&QuirkXVASGarbage != 0 {
		usable -= 0x20
	}
	if rest := s.Ch[0].SF.Size() - off; rest < usable {
		usable = rest
	}

	b.CurrentOffset = off
	b.NextOffset = off + full
	b.CurrentSize = usable
	for i := range s.Ch {
		s.Ch[i].Offset = off
	}
}

// updatePS2IAB walks IAB blocks: data size at 0x08, block size at 0x0c.
func (s *Stream) updatePS2IAB(off int64) {
	b := &s.Block
	size := int64(s.u32le(off + 0x0c))
	if size == 0 {
		size = 0x10
	}
	b.CurrentOffset = off
	b.NextOffset = off + size
	s.setBlockData(off+0x10, int64(s.u32le(off+0x08)))
}

// updateMXCH walks MxCh chunks, skipping "pad " chunks. Chunks are word
// aligned.
func (s *Stream) updateMXCH(off int64) {
	b := &s.Block
	end := s.Ch[0].SF.Size()
	for off+8 <= end && s.u32be(off) == id32("pad ") {
		off += int64(s.u32le(off+4)) + 8
	}

	size := int64(s.u32le(off + 4))
	next := off + 8 + size
	if next%2 != 0 {
		next++
	}
	b.CurrentOffset = off
	b.NextOffset = next
	b.CurrentSize = 0
	b.CurrentSamples = 0
	if s.u32be(off) != id32("MxCh") || size < 0x0e {
		return
	}
	s.setBlockData(off+8+0x0e, size-0x0e)
}
