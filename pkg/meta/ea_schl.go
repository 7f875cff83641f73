package meta

import (
	"encoding/binary"
	"log/slog"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

// EA platform ids of the "PT" header.
const (
	eaPlatformPC      = 0x00
	eaPlatformPSX     = 0x01
	eaPlatformN64     = 0x02
	eaPlatformMAC     = 0x03
	eaPlatformSAT     = 0x04
	eaPlatformPS2     = 0x05
	eaPlatformGC      = 0x06
	eaPlatformXbox    = 0x07
	eaPlatformGeneric = 0x08
	eaPlatformX360    = 0x09
	eaPlatformPSP     = 0x0A
	eaPlatformPS3     = 0x0E
	eaPlatformWii     = 0x10
	eaPlatform3DS     = 0x14
)

const (
	eaCodec1PCM  = 0x00
	eaCodec1IMA  = 0x02
	eaCodec1N64  = 0x05
	eaCodec1VAG  = 0x06
	eaCodec1EAXA = 0x07
	eaCodec1MT10 = 0x09

	eaCodec2S16LEInt  = 0x00
	eaCodec2S16BEInt  = 0x01
	eaCodec2S8Int     = 0x02
	eaCodec2EAXAInt   = 0x03
	eaCodec2MT10      = 0x04
	eaCodec2VAG       = 0x05
	eaCodec2N64       = 0x06
	eaCodec2S16BE     = 0x07
	eaCodec2S16LE     = 0x08
	eaCodec2S8        = 0x09
	eaCodec2EAXA      = 0x0A
	eaCodec2IMAInt    = 0x0D
	eaCodec2Layer3    = 0x10
	eaCodec2GCADPCM   = 0x12
	eaCodec2XboxADPCM = 0x14
	eaCodec2ATRAC3    = 0x1A

	eaNone        = -1
	eaMaxChannels = 6
)

type eaPlatformDefaults struct {
	version int
	codec1  int // used by version 0 only
	codec2  int
	rate    int
	be      bool
}

var eaPlatforms = map[int]eaPlatformDefaults{
	eaPlatformPC:      {version: 0, codec1: eaCodec1PCM, codec2: eaCodec2EAXA, rate: 22050},
	eaPlatformPSX:     {version: 0, codec1: eaCodec1VAG, codec2: eaCodec2VAG, rate: 22050},
	eaPlatformN64:     {version: 0, codec1: eaCodec1N64, codec2: eaCodec2N64, rate: 22050, be: true},
	eaPlatformMAC:     {version: 0, codec1: eaCodec1PCM, codec2: eaCodec2EAXA, rate: 22050, be: true},
	eaPlatformSAT:     {version: 0, codec1: eaCodec1PCM, codec2: eaNone, rate: 22050, be: true},
	eaPlatformPS2:     {version: 1, codec1: eaNone, codec2: eaCodec2VAG, rate: 22050},
	eaPlatformGC:      {version: 2, codec1: eaNone, codec2: eaCodec2S16BE, rate: 24000, be: true},
	eaPlatformXbox:    {version: 2, codec1: eaNone, codec2: eaCodec2S16LE, rate: 24000},
	eaPlatformGeneric: {version: 2, codec1: eaNone, codec2: eaCodec2EAXA, rate: 48000, be: true},
	eaPlatformX360:    {version: 3, codec1: eaNone, codec2: eaCodec2EAXA, rate: 44100, be: true},
	eaPlatformPSP:     {version: 3, codec1: eaNone, codec2: eaCodec2EAXA, rate: 22050},
	eaPlatformPS3:     {version: 3, codec1: eaNone, codec2: eaCodec2EAXA, rate: 44100, be: true},
	eaPlatformWii:     {version: 3, codec1: eaNone, codec2: eaCodec2GCADPCM, rate: 32000, be: true},
	eaPlatform3DS:     {version: 3, codec1: eaNone, codec2: eaCodec2GCADPCM, rate: 32000},
}

// eaHeader is the decoded variable "PT" patch header.
type eaHeader struct {
	platform   int
	version    int
	codec1     int
	codec2     int
	bps        int
	channels   int
	sampleRate int
	numSamples int
	loopStart  int
	loopEnd    int
	coefs      [eaMaxChannels]int64

	bigEndian    bool
	usePCMBlocks bool
	config       uint32
}

// initEASCHL parses Electronic Arts SCHl streams: a patch header followed
// by SCCl/SCDl/SCEl blocks, maybe several subfiles back to back. A header
// id "SHxx" selects the xx language blocks.
func initEASCHL(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "ea schl"
	id, err := sf.U32BE(0)
	if err != nil {
		return nil, notFormat(op)
	}
	var h eaHeader
	switch {
	case id == 0x5343486C: // SCHl
	case id&0xFFFF0000 == 0x53480000 && id != 0x53480000: // SHxx
		h.config |= (id & 0xFFFF) << 16
	default:
		return nil, notFormat(op)
	}

	le, _ := sf.U32LE(4)
	be, _ := sf.U32BE(4)
	headerSize := int64(le)
	if le > be {
		// early SAT/MAC
		headerSize = int64(be)
		h.config |= vgmstream.EAConfigSizeBE
	}
	if headerSize <= 8 || headerSize > sf.Size() {
		return nil, malformed(op, "header size 0x%x", headerSize)
	}

	if err := parseEAPatches(sf, &h, 8, headerSize-8); err != nil {
		return nil, err
	}
	t, err := eaCoding(&h)
	if err != nil {
		return nil, err
	}

	s := vgmstream.New(h.channels, h.loopEnd != 0)
	s.Meta = "Electronic Arts SCHl header"
	s.SampleRate = h.sampleRate
	s.NumSamples = h.numSamples
	if s.LoopFlag {
		s.LoopStart, s.LoopEnd = h.loopStart, h.loopEnd
	}
	s.Coding = t
	s.Layout = vgmstream.LayoutBlocked
	s.Block.Updater = vgmstream.BlockEASCHL
	s.Block.NextOffset = headerSize
	s.CodecBigEndian = h.bigEndian
	s.CodecConfig = h.config

	if t == coding.DSP {
		order := binary.ByteOrder(binary.LittleEndian)
		if h.bigEndian {
			order = binary.BigEndian
		}
		for ch := range s.Ch {
			for i := range s.Ch[ch].Coefs {
				v, err := sf.U16(h.coefs[ch]+int64(i)*2, order)
				if err != nil {
					return nil, malformed(op, "channel %d coefs", ch)
				}
				s.Ch[ch].Coefs[i] = int16(v)
			}
		}
	}
	if t == coding.MPEG {
		if err := s.OpenCodec(sf, coding.CodecConfig{}); err != nil {
			return nil, err
		}
	}
	return finish(s, sf, headerSize)
}

// readEAPatch reads the value of the tag before off and returns it with
// the offset after it. Long values are skipped and read as 0.
func readEAPatch(sf *streamfile.StreamFile, off int64) (uint32, int64) {
	n, _ := sf.U8(off)
	off++
	if n == 0xFF {
		size, _ := sf.U32BE(off)
		return 0, off + 4 + int64(size)
	}
	if n > 4 {
		return 0, off + int64(n)
	}
	var v uint32
	for ; n > 0; n-- {
		b, _ := sf.U8(off)
		v = v<<8 | uint32(b)
		off++
	}
	return v, off
}

func parseEAPatches(sf *streamfile.StreamFile, h *eaHeader, begin, maxLen int64) error {
	const op = "ea schl"
	h.version, h.codec1, h.codec2 = eaNone, eaNone, eaNone

	off := begin
	platformID, _ := sf.U32BE(off)
	if platformID != 0x47535452 && platformID&0xFFFF0000 != 0x50540000 {
		// an unknown field precedes the platform in some PS1 streams
		off += 4
		platformID, _ = sf.U32BE(off)
	}
	switch {
	case platformID == 0x47535452: // GSTR
		h.platform = eaPlatformGeneric
		off += 8
	case platformID&0xFFFF0000 == 0x50540000: // PT
		p, _ := sf.U16LE(off + 2)
		h.platform = int(p)
		off += 4
	default:
		return notFormat(op)
	}

	coefTags := map[byte]int{0x8F: 0, 0x90: 1, 0x91: 2, 0xAB: 3, 0xAC: 4, 0xAD: 5}
	for end := false; !end && off-begin < maxLen; {
		tag, err := sf.U8(off)
		if err != nil {
			return malformed(op, "truncated header")
		}
		off++

		var v uint32
		switch tag {
		case 0xFC, 0xFD:
			continue
		case 0xFF, 0xFE:
			end = true
			continue
		}
		if ch, ok := coefTags[tag]; ok {
			h.coefs[ch] = off + 1
		}
		v, off = readEAPatch(sf, off)

		switch tag {
		case 0x80:
			h.version = int(v)
		case 0x81:
			h.bps = int(v)
		case 0x82:
			h.channels = int(v)
		case 0x83:
			h.codec1 = int(v)
		case 0x84:
			h.sampleRate = int(v)
		case 0x85:
			h.numSamples = int(v)
		case 0x86:
			h.loopStart = int(v)
		case 0x87:
			h.loopEnd = int(v) + 1
		case 0xA0:
			h.codec2 = int(v)
		default:
			if !eaKnownTag(tag) {
				return malformed(op, "unknown patch 0x%02x at 0x%x", tag, off)
			}
		}
	}

	if h.channels > eaMaxChannels {
		return malformed(op, "%d channels", h.channels)
	}
	if h.channels == 0 {
		h.channels = 1
	}
	return h.applyDefaults()
}

// eaKnownTag lists the tags that carry a value not used for playback.
func eaKnownTag(tag byte) bool {
	switch {
	case tag <= 0x15, tag >= 0x19 && tag <= 0x2A:
		return true
	case tag >= 0x88 && tag <= 0x95, tag == 0x98, tag == 0x99:
		return true
	case tag >= 0x9C && tag <= 0xA3, tag == 0xA6, tag == 0xA7, tag >= 0xAB && tag <= 0xAD:
		return true
	}
	return false
}

func (h *eaHeader) applyDefaults() error {
	const op = "ea schl"
	d, ok := eaPlatforms[h.platform]
	if !ok {
		return malformed(op, "unknown platform 0x%02x", h.platform)
	}
	h.bigEndian = d.be
	if h.version == eaNone {
		h.version = d.version
	}
	if h.codec1 == eaNone && h.version == 0 {
		if d.codec1 == eaNone {
			return malformed(op, "no default codec1 for platform 0x%02x", h.platform)
		}
		h.codec1 = d.codec1
	}

	if h.codec1 != eaNone && h.codec2 == eaNone {
		switch h.codec1 {
		case eaCodec1PCM:
			switch {
			case h.platform == eaPlatformPC && h.bps == 8:
				h.codec2 = eaCodec2S8Int
			case h.platform == eaPlatformPC && h.bigEndian:
				h.codec2 = eaCodec2S16BEInt
			case h.platform == eaPlatformPC:
				h.codec2 = eaCodec2S16LEInt
			case h.bps == 8:
				h.codec2 = eaCodec2S8
			case h.bigEndian:
				h.codec2 = eaCodec2S16BE
			default:
				h.codec2 = eaCodec2S16LE
			}
		case eaCodec1IMA:
			h.codec2 = eaCodec2IMAInt
		case eaCodec1N64:
			h.codec2 = eaCodec2N64
		case eaCodec1VAG:
			h.codec2 = eaCodec2VAG
		case eaCodec1EAXA:
			if h.platform == eaPlatformPC || h.platform == eaPlatformMAC {
				h.codec2 = eaCodec2EAXAInt
			} else {
				h.codec2 = eaCodec2EAXA
			}
		case eaCodec1MT10:
			h.codec2 = eaCodec2MT10
		default:
			return malformed(op, "unknown codec1 0x%02x", h.codec1)
		}
	}
	if h.codec2 == eaNone {
		if d.codec2 == eaNone {
			return malformed(op, "no default codec2 for platform 0x%02x", h.platform)
		}
		h.codec2 = d.codec2
	}
	if h.sampleRate == 0 {
		h.sampleRate = d.rate
	}

	h.usePCMBlocks = h.version == 3 || (h.version == 2 &&
		(h.platform == eaPlatformPC || h.platform == eaPlatformMAC || h.platform == eaPlatformGeneric))

	switch {
	case h.codec2 == eaCodec2GCADPCM && h.platform == eaPlatform3DS:
		h.config |= vgmstream.EAConfigADPCMHist
	case h.codec2 == eaCodec2EAXA && !h.usePCMBlocks:
		h.config |= vgmstream.EAConfigADPCMHist
	}
	return nil
}

// eaCoding maps codec2 to the decoder.
func eaCoding(h *eaHeader) (coding.Type, error) {
	const op = "ea schl"
	switch h.codec2 {
	case eaCodec2EAXAInt:
		return coding.EAXA, nil
	case eaCodec2EAXA:
		if h.usePCMBlocks {
			return 0, vgmerr.New(vgmerr.UnsupportedCodec, op, "EA-XA v2")
		}
		return coding.EAXAInt, nil
	case eaCodec2IMAInt:
		if h.channels > 1 {
			return coding.DVIIMAInt, nil
		}
		return coding.DVIIMA, nil
	case eaCodec2S8Int:
		return coding.PCM8Int, nil
	case eaCodec2S16LEInt:
		return coding.PCM16Int, nil
	case eaCodec2S16BEInt:
		return coding.PCM16IntBE, nil
	case eaCodec2S8:
		return coding.PCM8, nil
	case eaCodec2S16LE:
		return coding.PCM16LE, nil
	case eaCodec2S16BE:
		return coding.PCM16BE, nil
	case eaCodec2VAG:
		return coding.PSX, nil
	case eaCodec2XboxADPCM:
		return coding.XboxIMAMono, nil
	case eaCodec2GCADPCM:
		return coding.DSP, nil
	case eaCodec2Layer3:
		return coding.MPEG, nil
	case eaCodec2ATRAC3:
		return 0, &vgmerr.Error{Kind: vgmerr.UnsupportedCodec, Op: op + " ATRAC3"}
	}
	slog.Debug("ea schl: unsupported codec2", "codec2", h.codec2, "platform", h.platform)
	return 0, vgmerr.New(vgmerr.UnsupportedCodec, op, "codec2 0x%02x", h.codec2)
}
