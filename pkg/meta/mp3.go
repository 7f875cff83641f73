package meta

import (
	"github.com/hajimehoshi/go-mp3"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

// initMP3 parses bare MPEG audio, optionally behind an ID3v2 tag.
func initMP3(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "mpeg"
	start := id3v2Size(sf)
	hdr, err := sf.U32BE(start)
	if err != nil || hdr>>21 != 0x7FF {
		return nil, notFormat(op)
	}
	layer := (hdr >> 17) & 3
	if layer == 0 || (hdr>>12)&0xF == 0xF || (hdr>>10)&3 == 3 {
		return nil, notFormat(op)
	}

	dec, err := mp3.NewDecoder(sf.SectionReader(start, -1))
	if err != nil {
		return nil, vgmerr.Wrap(vgmerr.MalformedHeader, op, err)
	}
	// decoded output is 16-bit stereo whatever the source mode
	length := dec.Length()
	if length <= 0 {
		return nil, malformed(op, "unknown length")
	}

	channels := 2
	if (hdr>>6)&3 == 3 {
		channels = 1
	}
	s := vgmstream.New(channels, false)
	s.Meta = "MPEG audio"
	s.SampleRate = dec.SampleRate()
	s.NumSamples = int(length / 4)
	s.Coding = coding.MPEG
	s.Layout = vgmstream.LayoutFlat
	if err := s.OpenCodec(sf, coding.CodecConfig{}); err != nil {
		return nil, err
	}
	return finish(s, sf, start)
}

// id3v2Size returns the size of a leading ID3v2 tag, or 0.
func id3v2Size(sf *streamfile.StreamFile) int64 {
	if !sf.MatchID(0, "ID3") {
		return 0
	}
	b, err := sf.Bytes(6, 4)
	if err != nil {
		return 0
	}
	size := int64(b[0]&0x7F)<<21 | int64(b[1]&0x7F)<<14 | int64(b[2]&0x7F)<<7 | int64(b[3]&0x7F)
	return 10 + size
}
