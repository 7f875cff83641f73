package vgmstream

import (
	"log/slog"
)

// Controller drives playback of one Stream. Without a PlayConfig it runs in
// simple mode: the stream plays to its end, or forever when it loops. With
// one, the timeline is pad begin, body (loops), fade and pad end.
//
// A Controller is not safe for concurrent use.
type Controller struct {
	s  *Stream
	pc *PlayConfig
	ps playState
}

// NewController takes ownership of s. A nil pc selects simple mode; pc is
// copied, so later changes to it have no effect.
func NewController(s *Stream, pc *PlayConfig) *Controller {
	c := &Controller{s: s}
	if pc != nil {
		cfg := *pc
		c.pc = &cfg
		applyModifiers(s, c.pc)
		c.ps = newPlayState(s, c.pc)
		slog.Debug("play config",
			"pad_begin", c.ps.padBeginDuration,
			"trim_begin", c.ps.trimBeginDuration,
			"body", c.ps.bodyDuration,
			"fade", c.ps.fadeDuration,
			"pad_end", c.ps.padEndDuration,
			"total", c.ps.playDuration,
			"forever", c.pc.PlayForever)
	}
	return c
}

// Stream returns the controlled stream.
func (c *Controller) Stream() *Stream {
	return c.s
}

// Channels returns the number of interleaved channels Render writes per
// frame.
func (c *Controller) Channels() int {
	return c.s.Channels
}

// SampleRate returns the output rate in Hz. A TXTP #h override is already
// applied to the stream.
func (c *Controller) SampleRate() int {
	return c.s.SampleRate
}

func (c *Controller) configMode() bool {
	return c.pc != nil
}

func (c *Controller) forever() bool {
	return c.pc != nil && c.pc.PlayForever
}

// Forever reports that playback never ends on its own: a looping stream in
// simple mode, or PlayForever.
func (c *Controller) Forever() bool {
	if c.configMode() {
		return c.forever()
	}
	return c.s.LoopFlag
}

// TotalSamples is the playback length: the configured play duration, or
// the stream's own length in simple mode.
func (c *Controller) TotalSamples() int {
	if c.configMode() {
		return c.ps.playDuration
	}
	return c.s.NumSamples
}

// LoopSamples returns the active loop region, if any.
func (c *Controller) LoopSamples() (start, end int, ok bool) {
	if !c.s.LoopFlag && c.s.loopTarget == 0 {
		return 0, 0, false
	}
	return c.s.LoopStart, c.s.LoopEnd, true
}

// Position is the playback position in samples.
func (c *Controller) Position() int {
	if c.configMode() {
		return c.ps.position
	}
	return c.s.currentSample
}

// IsFinished reports that Render will produce no more frames.
func (c *Controller) IsFinished() bool {
	if c.configMode() {
		return !c.forever() && c.ps.position >= c.ps.playDuration
	}
	return c.s.Finished()
}

// Render writes up to frames interleaved frames into out and returns how
// many were written. Zero means the end was reached.
func (c *Controller) Render(out []int16, frames int) int {
	if frames <= 0 {
		return 0
	}
	if n := c.s.Channels * frames; len(out) < n {
		frames = len(out) / c.s.Channels
	}
	if !c.configMode() {
		return c.renderSimple(out, frames)
	}
	return c.renderConfig(out, frames)
}

func (c *Controller) renderSimple(out []int16, frames int) int {
	s := c.s
	if !s.LoopFlag {
		if s.Finished() {
			return 0
		}
		frames = min(frames, s.NumSamples-s.currentSample)
	}
	s.render(out, frames)
	return frames
}

func (c *Controller) renderConfig(out []int16, frames int) int {
	s := c.s
	ps := &c.ps
	ch := s.Channels

	if !c.forever() {
		if ps.position >= ps.playDuration {
			return 0
		}
		frames = min(frames, ps.playDuration-ps.position)
	}

	if ps.trimBeginLeft > 0 {
		s.skipSamples(ps.trimBeginLeft)
		ps.trimBeginLeft = 0
	}

	done := 0
	if ps.padBeginLeft > 0 {
		n := min(ps.padBeginLeft, frames)
		clear(out[:n*ch])
		ps.padBeginLeft -= n
		done = n
	}

	decode := frames - done
	if !c.forever() {
		decode = min(decode, max(ps.padEndStart-(ps.position+done), 0))
	}
	if decode > 0 {
		s.render(out[done*ch:], decode)
		if !c.forever() {
			fadeOut(out[done*ch:], ch, decode, ps.position+done, ps.fadeStart, ps.fadeDuration, c.pc.FadeShape)
		}
	}
	clear(out[(done+decode)*ch : frames*ch])

	ps.position += frames
	return frames
}

// Reset rewinds the stream and the play state to the start.
func (c *Controller) Reset() {
	c.s.Reset()
	if c.configMode() {
		c.ps.position = 0
		c.ps.padBeginLeft = c.ps.padBeginDuration
		c.ps.trimBeginLeft = c.ps.trimBeginDuration
	}
}
