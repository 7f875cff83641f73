package vgmstream

import (
	"log/slog"
)

// Seek moves playback to target (in timeline samples). Backward seeks reset
// the stream; in looping streams the target is folded into the loop region
// so that at most one loop pass is decoded.
func (c *Controller) Seek(target int) {
	target = max(target, 0)
	if !c.configMode() {
		c.seekSimple(target)
		return
	}
	if !c.forever() && target > c.ps.playDuration {
		target = c.ps.playDuration
	}
	c.seekConfig(target)
	c.ps.position = target
}

func (c *Controller) seekSimple(target int) {
	s := c.s
	if !s.LoopFlag && target >= s.NumSamples {
		c.forceEnd()
		return
	}
	if target < s.currentSample {
		s.Reset()
		s.skipSamples(target)
		return
	}
	s.skipSamples(target - s.currentSample)
}

// forceEnd parks a non-looping stream past its end so that it renders
// silence.
func (c *Controller) forceEnd() {
	c.s.currentSample = c.s.NumSamples + 1
}

func (c *Controller) seekConfig(target int) {
	s := c.s
	ps := &c.ps
	looped := s.LoopFlag || s.loopTarget > 0

	if target < ps.padBeginDuration {
		s.Reset()
		ps.padBeginLeft = ps.padBeginDuration - target
		ps.trimBeginLeft = ps.trimBeginDuration
		return
	}

	if !c.forever() && target >= ps.padEndStart {
		ps.padBeginLeft = 0
		ps.trimBeginLeft = 0
		if !looped {
			c.forceEnd()
		}
		return
	}

	// decoder position of the target
	rel := target - ps.padBeginDuration + ps.trimBeginDuration
	decode := 0

	switch {
	case !looped && rel < s.currentSample:
		s.Reset()
		decode = rel
	case !looped && rel < s.NumSamples:
		decode = rel - s.currentSample
	case !looped:
		c.forceEnd()
	case rel < s.LoopStart:
		if rel < s.currentSample {
			s.Reset()
			decode = rel
		} else {
			decode = rel - s.currentSample
		}
	default:
		decode = c.seekLoop(rel)
	}

	ps.padBeginLeft = 0
	ps.trimBeginLeft = 0
	s.skipSamples(decode)
}

// seekLoop positions a looping stream on decoder sample rel, which lies at
// or after the loop start, and returns the samples still to decode.
func (c *Controller) seekLoop(rel int) int {
	s := c.s

	if !s.hitLoop {
		if s.currentSample > s.LoopStart {
			slog.Debug("seek: past loop start without snapshot", "sample", s.currentSample)
			s.Reset()
		}
		s.skipSamples(s.LoopStart - s.currentSample)
		s.doLoop()
	}
	if !s.LoopFlag {
		// loop target already reached: replay from the start
		s.Reset()
		s.skipSamples(s.LoopStart)
		s.doLoop()
	}
	if s.currentSample < s.LoopStart || s.currentSample > s.LoopEnd {
		c.forceLoop(0)
	}

	body := s.LoopEnd - s.LoopStart
	seek := rel - s.LoopStart
	count := seek / body
	seek %= body
	curr := s.currentSample - s.LoopStart

	if s.loopTarget > 0 && count >= s.loopTarget {
		// the target lies in the tail after the last loop
		c.forceLoop(s.loopTarget - 1)
		return body + (rel - s.LoopStart - s.loopTarget*body)
	}

	if seek < curr || count != s.loopCount {
		c.forceLoop(count)
		return seek
	}
	return seek - curr
}

// forceLoop rewinds to the loop start as if count loops had been played.
func (c *Controller) forceLoop(count int) {
	s := c.s
	if !s.hitLoop {
		return
	}
	s.loopCount = count - 1
	s.currentSample = s.LoopEnd
	s.doLoop()
}
