package vgmstream

import (
	"log/slog"

	"github.com/drgolem/vgmtools/pkg/vgmerr"
)

// MaxSegments bounds the number of segments of one segmented stream.
const MaxSegments = 255

// SegmentedLayout plays sub-streams back to back.
type SegmentedLayout struct {
	Segments []*Stream

	// CarryHistory seeds each segment's ADPCM history from the end of the
	// previous one, for clips cut from one continuous ADPCM stream.
	CarryHistory bool

	current int
	buf     []int16
}

// Current returns the index of the segment being played.
func (d *SegmentedLayout) Current() int {
	return d.current
}

func (d *SegmentedLayout) reset() {
	d.current = 0
	for _, seg := range d.Segments {
		seg.Reset()
	}
}

// NewSegmented builds a stream playing segs in order. With loop set, the loop
// covers segments [loopStartSeg, loopEndSeg); a loopEndSeg outside
// (loopStartSeg, len(segs)] loops to the end. The stream takes ownership of
// the segments.
func NewSegmented(segs []*Stream, loop bool, loopStartSeg, loopEndSeg int) (*Stream, error) {
	const op = "segmented layout"
	if len(segs) == 0 || len(segs) > MaxSegments {
		return nil, vgmerr.New(vgmerr.BadComposition, op, "%d segments", len(segs))
	}

	channels := 0
	rate := 0
	total := 0
	loopStart, loopEnd := 0, 0
	if loopEndSeg <= loopStartSeg || loopEndSeg > len(segs) {
		loopEndSeg = len(segs)
	}

	for i, seg := range segs {
		if seg == nil {
			return nil, vgmerr.New(vgmerr.BadComposition, op, "segment %d missing", i)
		}
		if !seg.setup {
			if err := seg.Setup(); err != nil {
				return nil, vgmerr.Wrap(vgmerr.BadComposition, op, err)
			}
		}
		if seg.NumSamples <= 0 {
			return nil, vgmerr.New(vgmerr.BadComposition, op, "segment %d is empty", i)
		}
		if seg.LoopFlag {
			slog.Debug("segmented: segment loop disabled", "segment", i)
			seg.ForceLoop(false, 0, 0)
		}

		if i == 0 {
			channels = seg.Channels
		} else if seg.Channels != channels {
			slog.Warn("segmented: channel count differs from first segment",
				"segment", i, "channels", seg.Channels, "want", channels)
		}
		if seg.SampleRate != rate {
			if i > 0 {
				slog.Warn("segmented: sample rate differs", "segment", i, "rate", seg.SampleRate)
			}
			rate = max(rate, seg.SampleRate)
		}

		if loop && i == loopStartSeg {
			loopStart = total
		}
		if loop && i == loopEndSeg {
			loopEnd = total
		}
		total += seg.NumSamples
	}
	if loop && loopEndSeg == len(segs) {
		loopEnd = total
	}

	s := New(channels, loop)
	s.Layout = LayoutSegmented
	s.Coding = segs[0].Coding
	s.Meta = segs[0].Meta
	s.SampleRate = rate
	s.NumSamples = total
	s.LoopStart = loopStart
	s.LoopEnd = loopEnd
	s.Segments = &SegmentedLayout{Segments: segs}
	if err := s.Setup(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stream) renderSegmented(out []int16, frames int) {
	d := s.Segments
	done := 0
	for done < frames {
		if s.LoopFlag && s.doLoop() {
			continue
		}
		if d.current >= len(d.Segments) {
			s.silenceFrom(out, done, frames)
			return
		}

		seg := d.Segments[d.current]
		todo := min(s.samplesToDo(seg.NumSamples, 0), frames-done)
		if todo <= 0 {
			if s.samplesIntoBlock >= seg.NumSamples {
				s.nextSegment()
				continue
			}
			s.silenceFrom(out, done, frames)
			return
		}

		d.renderSegment(seg, out[done*s.Channels:], todo, s.Channels)
		done += todo
		s.advance(todo)

		if s.samplesIntoBlock >= seg.NumSamples {
			s.nextSegment()
		}
	}
}

// renderSegment renders into the parent channel layout, dropping extra
// channels of the segment or padding missing ones with silence.
func (d *SegmentedLayout) renderSegment(seg *Stream, out []int16, frames, channels int) {
	if seg.Channels == channels {
		seg.render(out, frames)
		return
	}
	n := frames * seg.Channels
	if cap(d.buf) < n {
		d.buf = make([]int16, n)
	}
	buf := d.buf[:n]
	seg.render(buf, frames)
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			var v int16
			if ch < seg.Channels {
				v = buf[f*seg.Channels+ch]
			}
			out[f*channels+ch] = v
		}
	}
}

// nextSegment moves to the following segment, restarting it.
func (s *Stream) nextSegment() {
	d := s.Segments
	prev := d.Segments[d.current]
	d.current++
	s.samplesIntoBlock = 0
	if d.current >= len(d.Segments) {
		return
	}
	seg := d.Segments[d.current]
	seg.Reset()
	if d.CarryHistory {
		carryHistory(prev, seg)
	}
}

func carryHistory(from, to *Stream) {
	for i := range to.Ch {
		if i >= len(from.Ch) {
			break
		}
		to.Ch[i].Hist1 = from.Ch[i].Hist1
		to.Ch[i].Hist2 = from.Ch[i].Hist2
		to.Ch[i].StepIndex = from.Ch[i].StepIndex
	}
}

// loopSegmented re-enters the segment holding the loop start.
func (s *Stream) loopSegmented() {
	d := s.Segments
	k, skip := d.locate(s.LoopStart)
	d.current = k
	for _, seg := range d.Segments[k:] {
		seg.Reset()
	}
	if d.CarryHistory && k > 0 {
		carryHistory(d.Segments[k-1], d.Segments[k])
	}
	if skip > 0 {
		d.Segments[k].skipSamples(skip)
	}
	s.samplesIntoBlock = skip
}

// locate returns the segment holding sample and the offset inside it.
func (d *SegmentedLayout) locate(sample int) (int, int) {
	total := 0
	for i, seg := range d.Segments {
		if sample < total+seg.NumSamples {
			return i, sample - total
		}
		total += seg.NumSamples
	}
	slog.Debug("segmented: sample outside segments", "sample", sample)
	return 0, 0
}

// skipWholeSegments jumps over segments that end within samples when no
// loop event happens inside them, and returns what is left to skip.
func (s *Stream) skipWholeSegments(samples int) int {
	d := s.Segments
	if d.CarryHistory {
		return samples
	}
	for d.current < len(d.Segments)-1 {
		left := d.Segments[d.current].NumSamples - s.samplesIntoBlock
		if left > samples {
			break
		}
		cur := s.currentSample
		if s.LoopFlag {
			if !s.hitLoop && s.LoopStart >= cur && s.LoopStart < cur+left {
				break
			}
			if s.LoopEnd >= cur && s.LoopEnd <= cur+left {
				break
			}
		}
		samples -= left
		s.currentSample += left
		s.nextSegment()
	}
	return samples
}
