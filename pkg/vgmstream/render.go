package vgmstream

// Render fills out with frames interleaved frames (frames*Channels values)
// from the current position. Past the end of a non-looping stream the
// output is silence. Rendering never fails: decode problems are logged by
// the codecs and come out as silence.
func (s *Stream) Render(out []int16, frames int) {
	if frames <= 0 {
		return
	}
	s.render(out, frames)
}

func (s *Stream) render(out []int16, frames int) {
	if !s.LoopFlag && s.currentSample >= s.NumSamples {
		clear(out[:frames*s.Channels])
		return
	}

	switch s.Layout {
	case LayoutFlat:
		s.renderFlat(out, frames)
	case LayoutInterleave:
		s.renderInterleave(out, frames)
	case LayoutBlocked:
		s.renderBlocked(out, frames)
	case LayoutSegmented:
		s.renderSegmented(out, frames)
	case LayoutLayered:
		s.renderLayered(out, frames)
	default:
		clear(out[:frames*s.Channels])
	}
}

// silenceFrom zeroes out from frame done up to frames.
func (s *Stream) silenceFrom(out []int16, done, frames int) {
	clear(out[done*s.Channels : frames*s.Channels])
}
