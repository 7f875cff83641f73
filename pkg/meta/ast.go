package meta

import (
	"encoding/binary"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

// astHeader is the big endian "STRM" header of Nintendo .ast files.
type astHeader struct {
	Magic      [4]byte
	DataSize   uint32
	Codec      uint16 // 0 AFC, 1 PCM16
	Bits       uint16
	Channels   uint16
	Loop       uint16 // 0xFFFF when looping
	SampleRate uint32
	NumSamples uint32
	LoopStart  uint32
	LoopEnd    uint32
}

const astFirstBlock = 0x40

func initAST(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "ast"
	if !sf.MatchID(0, "STRM") {
		return nil, notFormat(op)
	}
	var h astHeader
	if err := sf.ReadHeader(0, binary.BigEndian, &h); err != nil {
		return nil, vgmerr.Wrap(vgmerr.MalformedHeader, op, err)
	}
	if !sf.MatchID(astFirstBlock, "BLCK") {
		return nil, malformed(op, "no BLCK at 0x%x", astFirstBlock)
	}
	switch {
	case h.Codec == 0:
		return nil, vgmerr.New(vgmerr.UnsupportedCodec, op, "AFC")
	case h.Codec != 1 || h.Bits != 16:
		return nil, malformed(op, "codec %d, %d bits", h.Codec, h.Bits)
	case h.Channels < 1:
		return nil, malformed(op, "no channels")
	}

	s := vgmstream.New(int(h.Channels), h.Loop == 0xFFFF)
	s.Meta = "Nintendo AST header"
	s.SampleRate = int(h.SampleRate)
	s.NumSamples = int(h.NumSamples)
	if s.LoopFlag {
		s.LoopStart, s.LoopEnd = int(h.LoopStart), int(h.LoopEnd)
	}
	s.Coding = coding.PCM16BE
	s.Layout = vgmstream.LayoutBlocked
	s.Block.Updater = vgmstream.BlockAST
	s.Block.NextOffset = astFirstBlock
	return finish(s, sf, astFirstBlock)
}
