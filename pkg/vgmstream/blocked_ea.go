package vgmstream

import (
	"log/slog"

	"github.com/drgolem/vgmtools/pkg/coding"
)

// EA block CodecConfig flags.
const (
	EAConfigADPCMHist = 0x01 // every channel starts with 4 bytes of history
	EAConfigSizeBE    = 0x02 // block sizes are big endian (early SS/MAC)
)

// EALanguage builds the CodecConfig language bits selecting "SDxx" blocks.
func EALanguage(lang string) uint32 {
	if len(lang) != 2 {
		return 0
	}
	return (uint32(lang[0])<<8 | uint32(lang[1])) << 16
}

// updateEASCHL walks SCHl style blocks: id, size, sample count, then codec
// specific channel data. Non audio chunks yield empty blocks.
func (s *Stream) updateEASCHL(off int64) {
	b := &s.Block
	lang := (s.CodecConfig >> 16) & 0xFFFF

	id := s.u32be(off)
	var size int64
	if s.CodecConfig&EAConfigSizeBE != 0 {
		size = int64(s.u32be(off + 4))
	} else {
		size = int64(s.u32le(off + 4))
	}

	samples := 0
	if id == id32("SCDl") || (lang != 0 && id == 0x53440000|lang) {
		if s.Coding == coding.PSX {
			samples = int(coding.PSXBytesToSamples(size-0x10, s.Channels))
		} else {
			samples = int(s.read32(off + 8))
		}
	}
	if id == id32("SCHl") {
		// a new subfile: decoders restart at its first audio block
		b.pendingFlush = true
	}
	if id == 0 {
		// padding between SCEl and the next SCHl
		size = 4
	}
	if size == 0 || size > 0xFFFFF || samples > 0xFFFF || samples < 0 {
		size = 4
		samples = 0
	}
	if id == id32("SCEl") && (off+size)%4 != 0 {
		size += 4 - (off+size)%4
	}

	b.CurrentOffset = off
	b.NextOffset = off + size
	b.CurrentSamples = samples
	b.CurrentSize = 0
	if samples == 0 {
		return
	}

	ch := int64(s.Channels)
	switch s.Coding {
	case coding.PSX:
		interleave := (size - 0x10) / ch
		for i := range s.Ch {
			s.Ch[i].Offset = off + 0x10 + int64(i)*interleave
		}
	case coding.DVIIMA, coding.DVIIMAInt:
		for i := range s.Ch {
			hdr := off + 0x0c + int64(i)*4
			s.Ch[i].Hist1 = int32(s.s16le(hdr))
			s.Ch[i].StepIndex = int32(s.s16le(hdr + 2))
			s.Ch[i].Offset = off + 0x0c + 4*ch
		}
	case coding.PCM16Int, coding.PCM16IntBE:
		for i := range s.Ch {
			s.Ch[i].Offset = off + 0x0c + int64(i)*2
		}
	case coding.EAXA, coding.EAXAInt:
		var interleave int64
		if s.Coding == coding.EAXAInt {
			// blocks may be padded: the channel size follows the sample count
			interleave = int64(samples/28) * 0x0f
		}
		for i := range s.Ch {
			s.Ch[i].Offset = off + 0x0c + 8 + int64(i)*interleave
		}
	case coding.MPEG:
		for i := range s.Ch {
			var start int64
			if s.Channels > 2 {
				start = int64(s.read32(off + 0x0c + 4*int64(i)))
			} else {
				start = int64(s.read32(off + 0x0c))
			}
			s.Ch[i].Offset = off + 0x0c + 4*ch + start
		}
	default:
		for i := range s.Ch {
			start := int64(s.read32(off + 0x0c + 4*int64(i)))
			s.Ch[i].Offset = off + 0x0c + 4*ch + start
			if s.CodecConfig&EAConfigADPCMHist != 0 {
				s.Ch[i].Offset += 4
			}
		}
	}

	if b.pendingFlush {
		b.pendingFlush = false
		if s.Codec != nil {
			s.Codec.Flush()
		}
	}
}

// guessBE reports whether the u32 at off reads smaller as big endian.
func (s *Stream) guessBE(off int64) bool {
	return s.u32le(off) > s.u32be(off)
}

// updateEA1SNH walks 1SNh/SEAD style blocks: header, data and end blocks,
// each with a size of either endianness.
func (s *Stream) updateEA1SNH(off int64) {
	b := &s.Block

	id := s.u32be(off)
	var size int64
	if s.guessBE(off + 4) {
		size = int64(s.u32be(off + 4))
	} else {
		size = int64(s.u32le(off + 4))
	}

	var header int64
	switch id {
	case id32("1SNh"), id32("SEAD"):
		eacs := s.Ch[0].SF.MatchID(off+8, "EACS")
		zero := s.u32be(off+8) == 0
		switch {
		case eacs || zero:
			header = 0x28
		case id == id32("SEAD"):
			header = 0x14
		default:
			header = 0x2c
		}
		if header >= size {
			header = 0
		}
	case id32("1SNd"), id32("SNDC"):
		header = 8
	case 0, 0xFFFFFFFF, id32("1SNe"):
		b.CurrentOffset = off
		b.NextOffset = off
		b.CurrentSamples = -1
		return
	}

	b.CurrentOffset = off
	b.NextOffset = off + size
	b.CurrentSize = 0
	if header == 0 {
		b.CurrentSamples = 0
		return
	}

	audio := size - header
	ch := int64(s.Channels)
	switch s.Coding {
	case coding.PCM8Int, coding.PCM8UInt:
		b.CurrentSamples = int(coding.PCMBytesToSamples(audio, s.Channels, 8))
		for i := range s.Ch {
			s.Ch[i].Offset = off + header + int64(i)
		}
	case coding.PCM16Int, coding.PCM16IntBE:
		b.CurrentSamples = int(coding.PCMBytesToSamples(audio, s.Channels, 16))
		for i := range s.Ch {
			s.Ch[i].Offset = off + header + int64(i)*2
		}
	case coding.PSX:
		if s.CodecConfig == 1 {
			header += 4
			audio -= 4
		}
		b.CurrentSamples = int(coding.PSXBytesToSamples(audio, s.Channels))
		for i := range s.Ch {
			s.Ch[i].Offset = off + header + int64(i)*(audio/ch)
		}
	case coding.DVIIMA, coding.DVIIMAInt:
		if s.CodecConfig == 1 {
			// sample count and per channel ADPCM state precede the data
			b.CurrentSamples = int(int32(s.read32(off + header)))
			adpcm := off + header + 4
			for i := range s.Ch {
				s.Ch[i].StepIndex = int32(s.read32(adpcm + int64(i)*4))
				s.Ch[i].Hist1 = int32(s.read32(adpcm + int64(i)*4 + 4*ch))
				s.Ch[i].Offset = adpcm + 8*ch
			}
		} else {
			b.CurrentSamples = int(coding.IMABytesToSamples(audio, s.Channels))
			for i := range s.Ch {
				s.Ch[i].Offset = off + header
			}
		}
	default:
		b.CurrentSamples = 0
	}
}

// updateEASWVR walks SWVR multiblocks. Blocks of other subsongs are skipped
// by giving them no data.
func (s *Stream) updateEASWVR(off int64) {
	b := &s.Block
	id := s.read32(off)
	size := int64(s.read32(off + 4))
	ch := int64(s.Channels)

	target := uint32(max(s.StreamIndex, 1))
	read16 := func(o int64) uint16 {
		if s.CodecBigEndian {
			return s.u16be(o)
		}
		return uint16(s.s16le(o))
	}

	var header, channelSize int64
	switch id {
	case id32("VAGM"):
		if read16(off+0x1a) == 0x0024 {
			header = 0x40
			channelSize = (size - header) / ch
			if s.read32(off+0x0c)+1 != target {
				channelSize = 0
			}
		} else {
			header = 0x1c
			channelSize = (size - header) / ch
		}
	case id32("VAGB"):
		header = 0x18
		if read16(off+0x1a) == 0x6400 {
			header = 0x40
		}
		channelSize = (size - header) / ch
	case id32("DSPM"):
		header = 0x60
		channelSize = (size - header) / ch
		if s.read32(off+0x0c)+1 != target {
			channelSize = 0
		}
		s.readDSPCoefs(off+0x1a, 0x22)
	case id32("DSPB"):
		header = 0x40
		channelSize = (size - header) / ch
		s.readDSPCoefs(off+0x18, 0)
	case id32("MSIC"):
		header = 0x1c
		channelSize = (size - header) / ch
	case id32("SHOC"):
		if s.read32(off+0x10) == id32("SDAT") {
			header = 0x14
			channelSize = (size - header) / ch
		}
	case id32("FILL"):
		if s.Block.Quirks&QuirkSWVRFill != 0 {
			// near boundaries FILL has no real size
			switch {
			case (off+4)%0x6000 == 0, (off+4)%0x10000 == 0:
				size = 4
			case size > 0x100000:
				slog.Debug("ea swvr: bad FILL size", "offset", off)
				size = 4
			}
		}
		header = 8
	case 0xFFFFFFFF:
		channelSize = -1
	}

	b.CurrentSize = channelSize
	b.CurrentOffset = off
	b.NextOffset = off + size

	interleave := channelSize
	if s.Coding == coding.PCM8UInt {
		interleave = 1
	}
	for i := range s.Ch {
		s.Ch[i].Offset = off + header + interleave*int64(i)
	}
}

// updateEASNS walks EA SNS/SPS blocks. The big endian size word carries a
// flag in its top byte: 0x00, 0x80 (last) and 0x44 are audio blocks with
// the sample count at 0x04, anything else is skipped.
func (s *Stream) updateEASNS(off int64) {
	b := &s.Block
	word := s.u32be(off)
	flag := word >> 24
	size := int64(word & 0x00FFFFFF)

	samples := 0
	if flag == 0x00 || flag == 0x80 || flag == 0x44 {
		samples = int(s.u32be(off + 4))
	}
	b.CurrentOffset = off
	b.NextOffset = off + size
	b.CurrentSize = 0
	b.CurrentSamples = samples
	if samples == 0 {
		return
	}

	data := off + 0x08
	if s.Coding == coding.DSP {
		start := int64(s.u32be(data))
		interleave := int64(s.u32be(data + 0x0c))
		if start >= 0x40 {
			// only the first block carries the channel state
			s.readDSPCoefs(data+0x10, 0x28)
			for i := range s.Ch {
				h := data + 0x30 + 0x28*int64(i)
				s.Ch[i].Hist1 = int32(s.s16be(h))
				s.Ch[i].Hist2 = int32(s.s16be(h + 2))
			}
		}
		for i := range s.Ch {
			s.Ch[i].Offset = data + start + interleave*int64(i)
		}
		return
	}
	for i := range s.Ch {
		s.Ch[i].Offset = data + s.channelStart(i)
	}
}
