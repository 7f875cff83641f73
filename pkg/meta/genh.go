package meta

import (
	"encoding/binary"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

// genhHeader is the fixed little endian GENH header, a generic header
// prepended to headerless streams.
type genhHeader struct {
	Magic             [4]byte
	Channels          int32
	Interleave        int32
	SampleRate        int32
	LoopStart         int32 // -1: no loop
	LoopEnd           int32 // also the sample count
	Codec             int32
	StartOffset       int32
	HeaderSize        int32
	Coef              [2]int32
	DSPInterleaveType int32
	CoefType          int32 // 0 normal, 1 split into rows
	CoefSplit         [2]int32
}

const genhFlatInterleave = -1 // 0xffffffff

var genhCodecs = map[int32]coding.Type{
	0:  coding.PSX,
	1:  coding.XboxIMA,
	3:  coding.PCM16BE,
	4:  coding.PCM16LE,
	5:  coding.PCM8,
	6:  coding.SDX2,
	7:  coding.DVIIMA,
	8:  coding.MPEG,
	9:  coding.IMA,
	10: coding.AICA,
	12: coding.DSP,
	13: coding.PCM8UInt,
	14: coding.PSXBadFlags,
	16: coding.PCM8U,
}

// sample interleaved variants of codecs for multichannel streams without
// an interleave
var genhFlatVariants = map[coding.Type]coding.Type{
	coding.PCM16LE: coding.PCM16Int,
	coding.PCM16BE: coding.PCM16IntBE,
	coding.PCM8:    coding.PCM8Int,
	coding.PCM8U:   coding.PCM8UInt,
	coding.SDX2:    coding.SDX2Int,
	coding.DVIIMA:  coding.DVIIMAInt,
	coding.IMA:     coding.IMAInt,
	coding.AICA:    coding.AICAInt,
}

func initGENH(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "genh"
	if !sf.MatchID(0, "GENH") {
		return nil, notFormat(op)
	}
	var h genhHeader
	if err := sf.ReadHeader(0, binary.LittleEndian, &h); err != nil {
		return nil, vgmerr.Wrap(vgmerr.MalformedHeader, op, err)
	}
	if h.Channels < 1 {
		return nil, malformed(op, "%d channels", h.Channels)
	}

	t, ok := genhCodecs[h.Codec]
	if !ok {
		return nil, vgmerr.New(vgmerr.UnsupportedCodec, op, "codec %d", h.Codec)
	}

	if h.HeaderSize == 0 {
		// old GENH
		h.StartOffset, h.HeaderSize = 0x800, 0x800
	}
	if h.HeaderSize > h.StartOffset {
		return nil, malformed(op, "data at 0x%x inside header of 0x%x", h.StartOffset, h.HeaderSize)
	}

	s := vgmstream.New(int(h.Channels), h.LoopStart != -1)
	s.Meta = "GENH generic header"
	s.SampleRate = int(h.SampleRate)
	s.NumSamples = int(h.LoopEnd)
	if s.LoopFlag {
		s.LoopStart, s.LoopEnd = int(h.LoopStart), int(h.LoopEnd)
	}
	s.Coding = t
	s.Layout = vgmstream.LayoutFlat
	start := int64(h.StartOffset)

	switch t {
	case coding.XboxIMA, coding.PCM8UInt:
		// all channels read one frame stream
	case coding.MPEG:
		if err := s.OpenCodec(sf, coding.CodecConfig{Offset: start}); err != nil {
			return nil, err
		}
	case coding.DSP:
		if err := genhDSP(s, sf, &h); err != nil {
			return nil, err
		}
		return setup(s)
	default:
		if h.Channels > 1 {
			if h.Interleave == genhFlatInterleave {
				flat, ok := genhFlatVariants[t]
				if !ok {
					return nil, malformed(op, "%s needs an interleave", t)
				}
				s.Coding = flat
			} else {
				s.Layout = vgmstream.LayoutInterleave
				s.Interleave = int64(h.Interleave)
			}
		}
	}
	if t == coding.AICA {
		for i := range s.Ch {
			s.Ch[i].StepIndex = 0x7f
		}
	}
	return finish(s, sf, start)
}

// genhDSP reads the DSP coefficients and places the channels. Type 0 is a
// regular interleave, type 2 keeps each channel contiguous at
// start+interleave*channel.
func genhDSP(s *vgmstream.Stream, sf *streamfile.StreamFile, h *genhHeader) error {
	const op = "genh"
	for i := range s.Ch {
		coef := int64(h.Coef[min(i, 1)])
		for j := 0; j < 8; j++ {
			var err error
			var a, b int16
			if h.CoefType == 1 {
				a, err = sf.S16BE(coef + int64(j)*2)
				if err == nil {
					b, err = sf.S16BE(int64(h.CoefSplit[min(i, 1)]) + int64(j)*2)
				}
			} else {
				a, err = sf.S16BE(coef + int64(j)*4)
				if err == nil {
					b, err = sf.S16BE(coef + int64(j)*4 + 2)
				}
			}
			if err != nil {
				return vgmerr.Wrap(vgmerr.MalformedHeader, op+" coefs", err)
			}
			s.Ch[i].Coefs[j*2], s.Ch[i].Coefs[j*2+1] = a, b
		}
	}

	start := int64(h.StartOffset)
	switch h.DSPInterleaveType {
	case 0:
		if h.Channels > 1 {
			s.Layout = vgmstream.LayoutInterleave
			s.Interleave = int64(h.Interleave)
		}
		return s.Open(sf, start)
	case 2:
		for i := range s.Ch {
			s.OpenChannel(i, sf, start+int64(h.Interleave)*int64(i))
		}
		return nil
	}
	return malformed(op, "DSP interleave type %d", h.DSPInterleaveType)
}
