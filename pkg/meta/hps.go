package meta

import (
	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

const (
	hpsFirstBlock     = 0x80
	hpsChannelHeader  = 0x38
	hpsMaxBlockWalked = 1 << 16
)

// initHPS parses HAL Laboratory " HALPST" DSP streams. Blocks form a linked
// list; a next pointer that goes back to an earlier block is the loop.
func initHPS(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "hps"
	if !sf.MatchID(0, " HALPST\x00") {
		return nil, notFormat(op)
	}
	rate, err := sf.U32BE(0x08)
	if err != nil {
		return nil, malformed(op, "short header")
	}
	channels, _ := sf.U32BE(0x0c)
	if channels < 1 || channels > 2 {
		return nil, malformed(op, "%d channels", channels)
	}
	endNibble, _ := sf.U32BE(0x10 + 0x08)

	s := vgmstream.New(int(channels), false)
	s.Meta = "HALPST header"
	s.SampleRate = int(rate)
	s.NumSamples = int(coding.DSPNibblesToSamples(int64(endNibble) + 1))
	s.Coding = coding.DSP
	s.Layout = vgmstream.LayoutBlocked
	s.Block.Updater = vgmstream.BlockHALPST
	s.Block.NextOffset = hpsFirstBlock

	for i := range s.Ch {
		base := int64(0x10+0x10) + int64(i)*hpsChannelHeader
		for j := range s.Ch[i].Coefs {
			v, err := sf.S16BE(base + int64(j)*2)
			if err != nil {
				return nil, malformed(op, "channel %d coefs", i)
			}
			s.Ch[i].Coefs[j] = v
		}
	}

	if start, ok := hpsFindLoop(sf, int(channels)); ok && start < s.NumSamples {
		s.LoopFlag = true
		s.LoopStart, s.LoopEnd = start, s.NumSamples
	}
	return finish(s, sf, 0)
}

// hpsFindLoop follows the block list and returns the samples before the
// block a backward pointer returns to.
func hpsFindLoop(sf *streamfile.StreamFile, channels int) (int, bool) {
	seen := map[int64]int{}
	samples := 0
	off := int64(hpsFirstBlock)
	for range hpsMaxBlockWalked {
		if off < 0 || off >= sf.Size() {
			return 0, false
		}
		if before, ok := seen[off]; ok {
			return before, true
		}
		seen[off] = samples

		size, err := sf.U32BE(off)
		if err != nil {
			return 0, false
		}
		next, _ := sf.S32BE(off + 8)
		samples += int(coding.DSPBytesToSamples(int64(size)/int64(channels), 1))
		off = int64(next)
	}
	return 0, false
}
