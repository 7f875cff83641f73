package vgmstream

import (
	"github.com/drgolem/vgmtools/pkg/coding"
)

// samplesToDo returns how many samples can be decoded before the next event:
// the end of the current block, the loop start, the loop end, the stream end,
// or a frame boundary for sample codecs with multi-sample frames.
func (s *Stream) samplesToDo(samplesThisBlock, samplesPerFrame int) int {
	cur := s.currentSample
	todo := samplesThisBlock - s.samplesIntoBlock

	if s.LoopFlag {
		if cur+todo > s.LoopEnd {
			todo = s.LoopEnd - cur
		}
		if !s.hitLoop && cur < s.LoopStart && cur+todo > s.LoopStart {
			todo = s.LoopStart - cur
		}
	} else if cur+todo > s.NumSamples {
		todo = s.NumSamples - cur
	}

	if samplesPerFrame > 1 {
		if part := s.samplesIntoBlock % samplesPerFrame; part+todo > samplesPerFrame {
			todo = samplesPerFrame - part
		}
	}
	return todo
}

// doLoop takes the loop snapshot when the loop start is reached and rewinds to
// it when the loop end is reached. It returns true after a rewind.
func (s *Stream) doLoop() bool {
	if !s.LoopFlag {
		return false
	}

	if s.currentSample == s.LoopEnd {
		s.loopCount++
		if s.loopTarget > 0 && s.loopCount == s.loopTarget {
			// target reached: play the tail after the loop end
			s.LoopFlag = false
			return false
		}

		if !s.hitLoop {
			// the loop was installed after the start was passed: no snapshot
			// exists yet, so replay up to the loop start to take one
			count := s.loopCount
			s.Reset()
			s.loopCount = count
			s.skipSamples(s.LoopStart)
			return true
		}
		s.restoreChannels(&s.loopSnap)
		s.currentSample = s.loopSnap.currentSample

		switch s.Layout {
		case LayoutSegmented:
			s.loopSegmented()
		case LayoutLayered:
			s.loopLayered()
		}
		s.loopCodec()
		return true
	}

	if !s.hitLoop && s.currentSample == s.LoopStart {
		s.save(&s.loopSnap)
		s.hitLoop = true
	}
	return false
}

// loopCodec brings a frame codec in line with the restored cursors.
func (s *Stream) loopCodec() {
	if s.Codec == nil {
		return
	}
	switch s.Layout {
	case LayoutBlocked:
		s.Codec.Flush()
	default:
		s.seekCodec(s.LoopStart)
	}
}

// seekCodec positions a frame codec on an absolute sample: directly when the
// codec can seek, otherwise by a reset and decode-and-discard.
func (s *Stream) seekCodec(sample int) {
	if seeker, ok := s.Codec.(coding.SampleSeeker); ok {
		seeker.SeekSample(s.Ch, int64(sample))
		return
	}
	s.Codec.Reset(s.Ch)
	s.discardCodec(sample)
}

func (s *Stream) discardCodec(samples int) {
	buf := s.scratchBuffer(scratchFrames * s.Channels)
	for samples > 0 {
		n := min(samples, scratchFrames)
		s.Codec.Decode(s.Ch, buf, n)
		samples -= n
	}
}

const scratchFrames = 512

func (s *Stream) scratchBuffer(n int) []int16 {
	if cap(s.scratch) < n {
		s.scratch = make([]int16, n)
	}
	return s.scratch[:n]
}

// decode pulls samples frames from the codec at the current block position.
func (s *Stream) decode(out []int16, samples int) {
	if samples <= 0 {
		return
	}
	switch {
	case s.Coding == coding.Silence:
		clear(out[:samples*s.Channels])
	case s.Codec != nil:
		s.Codec.Decode(s.Ch, out, samples)
	default:
		for ch := range s.Ch {
			coding.DecodeChannel(s.Coding, &s.Ch[ch], out[ch:], s.Channels, s.samplesIntoBlock, samples, ch, s.Channels)
		}
	}
}

// advance moves the timeline after samples frames were produced.
func (s *Stream) advance(samples int) {
	s.currentSample += samples
	s.samplesIntoBlock += samples
}

// skipSamples decodes and drops samples frames, running loops as usual.
func (s *Stream) skipSamples(samples int) {
	if s.Layout == LayoutSegmented {
		samples = s.skipWholeSegments(samples)
	}
	if samples <= 0 {
		return
	}
	buf := make([]int16, scratchFrames*s.Channels)
	for samples > 0 {
		n := min(samples, scratchFrames)
		s.render(buf, n)
		samples -= n
	}
}
