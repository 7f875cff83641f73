package meta

import (
	"encoding/binary"

	"github.com/thesyncim/gopus"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

const (
	nxOpusHeaderID = 0x80000001
	nxOpusDataID   = 0x80000004
	nxOpusMaxPkt   = 0x4000
)

// nxOpusHeader is the little endian header of Nintendo Switch Opus files.
type nxOpusHeader struct {
	ID         uint32
	HeaderSize uint32
	Version    uint8
	Channels   uint8
	FrameSize  uint16
	SampleRate uint32
	DataOffset uint32
	Reserved   [8]byte
	PreSkip    uint32
}

// initNXOpus parses Switch Opus: a small header then a data chunk of Opus
// packets, each prefixed by a big endian size and the encoder final range.
func initNXOpus(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "nxopus"
	id, err := sf.U32LE(0)
	if err != nil || id != nxOpusHeaderID {
		return nil, notFormat(op)
	}
	var h nxOpusHeader
	if err := sf.ReadHeader(0, binary.LittleEndian, &h); err != nil {
		return nil, vgmerr.Wrap(vgmerr.MalformedHeader, op, err)
	}
	if h.Channels < 1 || h.Channels > 2 {
		return nil, vgmerr.New(vgmerr.UnsupportedCodec, op, "%d channel Opus", h.Channels)
	}
	dataOff := int64(h.DataOffset)
	if tag, err := sf.U32LE(dataOff); err != nil || tag != nxOpusDataID {
		return nil, malformed(op, "no data chunk at 0x%x", dataOff)
	}
	dataSize, _ := sf.U32LE(dataOff + 4)
	start := dataOff + 8
	end := min(start+int64(dataSize), sf.Size())

	samples, err := nxOpusCountSamples(sf, start, end)
	if err != nil {
		return nil, err
	}

	s := vgmstream.New(int(h.Channels), false)
	s.Meta = "Nintendo Switch Opus header"
	s.SampleRate = int(h.SampleRate)
	if s.SampleRate == 0 {
		s.SampleRate = 48000
	}
	s.NumSamples = samples - int(h.PreSkip)
	s.Coding = coding.Opus
	s.Layout = vgmstream.LayoutFlat
	if err := s.OpenCodec(sf, coding.CodecConfig{Skip: int(h.PreSkip)}); err != nil {
		return nil, err
	}
	return finish(s, sf, start)
}

// nxOpusCountSamples walks the packets in [start, end) and sums their
// durations at 48 kHz.
func nxOpusCountSamples(sf *streamfile.StreamFile, start, end int64) (int, error) {
	total := 0
	for off := start; off+8 <= end; {
		size, err := sf.U32BE(off)
		if err != nil {
			break
		}
		if size == 0 || size > nxOpusMaxPkt {
			return 0, malformed("nxopus", "packet size 0x%x at 0x%x", size, off)
		}
		pkt, err := sf.Bytes(off+8, int(size))
		if err != nil {
			break
		}
		info, err := gopus.ParsePacket(pkt)
		if err != nil {
			return 0, vgmerr.Wrap(vgmerr.MalformedHeader, "nxopus", err)
		}
		total += info.FrameCount * info.TOC.FrameSize
		off += 8 + int64(size)
	}
	return total, nil
}
