package meta

import (
	"bytes"
	"strings"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

// initVAG parses Sony VAG headers: "VAGp" mono and Vita multichannel files,
// plus the "VAG1"/"VAG2" variants.
func initVAG(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "vag"
	id, err := sf.Bytes(0, 4)
	if err != nil {
		return nil, notFormat(op)
	}

	version, _ := sf.U32BE(0x04)
	channelSize, _ := sf.U32BE(0x0c)
	rate, _ := sf.U32BE(0x10)

	start := int64(0x30)
	channels := 1
	var interleave int64
	findLoops := true

	switch string(id) {
	case "VAG1":
		start, interleave, findLoops = 0x40, 0x10, false
		channels = vagChannelByte(sf)
	case "VAG2":
		start, interleave, findLoops = 0x40, 0x800, false
		channels = 2
	case "VAGp":
		if version == 0x00020001 || version == 0x00030000 {
			interleave = 0x10
			hi, _ := sf.U32BE(0x18)
			lo, _ := sf.U32BE(0x1c)
			if b, _ := sf.U8(0x1e); hi == 0 && lo&0xFFFF00FF == 0 && b < 16 {
				channels = vagChannelByte(sf)
			}
		}
	default:
		return nil, notFormat(op)
	}
	if channels > 1 {
		channelSize /= uint32(channels)
	}

	s := vgmstream.New(channels, false)
	s.Meta = "Sony VAG header"
	s.SampleRate = int(rate)
	s.NumSamples = int(coding.PSXBytesToSamples(int64(channelSize), 1))
	s.Coding = coding.PSX
	s.Layout = vgmstream.LayoutFlat
	if channels > 1 {
		s.Layout = vgmstream.LayoutInterleave
		s.Interleave = interleave
	}
	if name, err := sf.Bytes(0x20, 0x10); err == nil {
		s.Name = strings.TrimSpace(string(bytes.TrimRight(name, "\x00")))
	}

	if findLoops {
		dataSize := int64(channelSize) * int64(channels)
		if ls, le, ok := psFindLoop(sf, start, dataSize, channels, interleave); ok {
			s.LoopFlag = true
			s.LoopStart, s.LoopEnd = ls, min(le, s.NumSamples)
		}
	}
	return finish(s, sf, start)
}

func vagChannelByte(sf *streamfile.StreamFile) int {
	b, _ := sf.U8(0x1e)
	return max(int(b), 1)
}

// psFindLoop scans the PS-ADPCM frame flags of the first channel: 0x06 marks
// the loop start frame, 0x03 the loop end frame.
func psFindLoop(sf *streamfile.StreamFile, start, size int64, channels int, interleave int64) (int, int, bool) {
	if size <= 0 || channels < 1 || (channels > 1 && interleave <= 0) {
		return 0, 0, false
	}
	var samples, loopStart, loopEnd int
	startFound, endFound := false, false
	var consumed int64

	end := start + size
	for off := start; off < end; {
		flag, err := sf.U8(off + 1)
		if err != nil {
			break
		}
		flag &= 0x0F

		if flag == 0x06 && !startFound {
			loopStart = samples
			startFound = true
		}
		if flag == 0x03 && loopEnd == 0 {
			loopEnd = samples + 28
			endFound = true
			// some mono files chain many start/end pairs
			if channels == 1 && off+0x10 < end {
				if nf, err := sf.U8(off + 0x11); err == nil && nf&0x0F == 0x06 {
					loopEnd, endFound = 0, false
				}
			}
			if startFound && endFound {
				break
			}
		}

		samples += 28
		off += 0x10
		consumed += 0x10
		if consumed == interleave {
			consumed = 0
			off += interleave * int64(channels-1)
		}
	}
	if startFound && endFound {
		return loopStart, loopEnd, true
	}
	return 0, 0, false
}
