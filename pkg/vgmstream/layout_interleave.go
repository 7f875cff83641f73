package vgmstream

import (
	"log/slog"
)

// renderFlat decodes a stream whose channels are contiguous in the source:
// the whole stream is one block.
func (s *Stream) renderFlat(out []int16, frames int) {
	spf := s.Coding.SamplesPerFrame(s.Channels)
	done := 0
	for done < frames {
		if s.LoopFlag && s.doLoop() {
			continue
		}

		todo := min(s.samplesToDo(s.NumSamples, spf), frames-done)
		if todo <= 0 {
			s.silenceFrom(out, done, frames)
			return
		}

		s.decode(out[done*s.Channels:], todo)
		done += todo
		s.advance(todo)
	}
}

// interleaveBlock describes the interleave stride the timeline is currently in.
type interleaveBlock struct {
	size    int64 // bytes per channel
	skip    int64 // bytes of the first stride not holding audio
	samples int
}

func (s *Stream) interleaveSamples(size int64) int {
	bpf := s.Coding.BytesPerFrame(1)
	if bpf <= 0 || size <= 0 {
		return 0
	}
	return int(size/int64(bpf)) * s.Coding.SamplesPerFrame(1)
}

// interleaveBlockAt returns the stride starting at sample blockStart.
func (s *Stream) interleaveBlockAt(blockStart int) interleaveBlock {
	b := interleaveBlock{size: s.Interleave}
	normal := s.interleaveSamples(s.Interleave)

	switch {
	case blockStart == 0 && s.InterleaveFirst > 0:
		b.size = s.InterleaveFirst
		b.skip = s.InterleaveFirstSkip
		b.samples = s.interleaveSamples(s.InterleaveFirst - s.InterleaveFirstSkip)
	case s.InterleaveLast > 0 && s.Channels > 1 && blockStart+normal > s.NumSamples:
		b.size = s.InterleaveLast
		b.samples = s.interleaveSamples(s.InterleaveLast)
	default:
		b.samples = normal
	}

	if b.samples == 0 && s.Channels == 1 {
		// mono without a usable interleave plays as one block
		b.samples = s.NumSamples
	}
	return b
}

// renderInterleave decodes channels stored in alternating fixed-size strides.
// Cursors stay on the stride start while decoding and jump over the other
// channels' strides when a stride is consumed.
func (s *Stream) renderInterleave(out []int16, frames int) {
	spf := s.Coding.SamplesPerFrame(1)
	blk := s.interleaveBlockAt(s.currentSample - s.samplesIntoBlock)

	done := 0
	for done < frames {
		if s.LoopFlag && s.doLoop() {
			blk = s.interleaveBlockAt(s.currentSample - s.samplesIntoBlock)
			continue
		}

		todo := min(s.samplesToDo(blk.samples, spf), frames-done)
		if todo <= 0 {
			slog.Debug("interleave: nothing to decode", "meta", s.Meta, "sample", s.currentSample)
			s.silenceFrom(out, done, frames)
			return
		}

		s.decode(out[done*s.Channels:], todo)
		done += todo
		s.advance(todo)

		if s.samplesIntoBlock == blk.samples {
			next := s.interleaveBlockAt(s.currentSample)
			n := int64(s.Channels)
			for k := range s.Ch {
				kk := int64(k)
				s.Ch[k].Offset += blk.size*(n-kk) + next.size*kk - blk.skip
			}
			blk = next
			s.samplesIntoBlock = 0
		}
	}
}
