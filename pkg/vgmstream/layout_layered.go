package vgmstream

import (
	"log/slog"

	"github.com/drgolem/vgmtools/pkg/vgmerr"
)

const (
	MaxLayers = 255
	// MaxChannels bounds the packed output of a layered stream.
	MaxChannels = 64

	layerBufFrames = 512

	// LoopTolerance is how far (in samples) a layer's loop may sit from
	// the parent loop and still be snapped to it.
	LoopTolerance = 12
)

// LayeredLayout plays sub-streams in parallel, packing their channels side
// by side: layer 0 channels first, then layer 1 and so on.
type LayeredLayout struct {
	Layers []*Stream

	// ExternalLooping disables layer loops; the parent rewinds every layer to
	// its loop start instead. It is switched on when layer loops disagree.
	ExternalLooping bool

	buf []int16
}

func (d *LayeredLayout) reset() {
	for _, l := range d.Layers {
		l.Reset()
	}
}

// NewLayered builds a stream from layers of equal sample rate. The loop, if
// any, comes from the first looping layer. The stream takes ownership of the
// layers.
func NewLayered(layers []*Stream, external bool) (*Stream, error) {
	const op = "layered layout"
	if len(layers) == 0 || len(layers) > MaxLayers {
		return nil, vgmerr.New(vgmerr.BadComposition, op, "%d layers", len(layers))
	}

	channels, total, widest := 0, 0, 0
	var looper *Stream
	for i, l := range layers {
		if l == nil {
			return nil, vgmerr.New(vgmerr.BadComposition, op, "layer %d missing", i)
		}
		if !l.setup {
			if err := l.Setup(); err != nil {
				return nil, vgmerr.Wrap(vgmerr.BadComposition, op, err)
			}
		}
		if l.NumSamples <= 0 {
			return nil, vgmerr.New(vgmerr.BadComposition, op, "layer %d is empty", i)
		}
		if l.SampleRate != layers[0].SampleRate {
			return nil, vgmerr.New(vgmerr.BadComposition, op,
				"layer %d rate %d, want %d", i, l.SampleRate, layers[0].SampleRate)
		}
		if l.Coding != layers[0].Coding {
			slog.Debug("layered: mixed codecs", "layer", i, "coding", l.Coding)
		}
		if looper == nil && l.LoopFlag {
			looper = l
		}
		channels += l.Channels
		total = max(total, l.NumSamples)
		widest = max(widest, l.Channels)
	}
	if channels > MaxChannels {
		return nil, vgmerr.New(vgmerr.BadComposition, op, "%d channels over %d layers", channels, len(layers))
	}

	s := New(channels, looper != nil)
	s.Layout = LayoutLayered
	s.Coding = layers[0].Coding
	s.Meta = layers[0].Meta
	s.SampleRate = layers[0].SampleRate
	s.NumSamples = total
	if looper != nil {
		s.LoopStart, s.LoopEnd = looper.LoopStart, looper.LoopEnd
	}
	s.Layers = &LayeredLayout{
		Layers:          layers,
		ExternalLooping: external,
		buf:             make([]int16, layerBufFrames*widest),
	}
	if err := s.Setup(); err != nil {
		return nil, err
	}
	s.harmonizeLayerLoops()
	return s, nil
}

// harmonizeLayerLoops snaps layer loops to the parent loop, or falls back to
// external looping when a layer cannot follow it.
func (s *Stream) harmonizeLayerLoops() {
	d := s.Layers
	if !d.ExternalLooping && s.LoopFlag {
		for i, l := range d.Layers {
			if l.NumSamples < s.LoopEnd {
				slog.Debug("layered: layer ends before loop end", "layer", i)
				d.ExternalLooping = true
				break
			}
			if l.LoopFlag && (absInt(l.LoopStart-s.LoopStart) > LoopTolerance ||
				absInt(l.LoopEnd-s.LoopEnd) > LoopTolerance) {
				slog.Warn("layered: layer loops differ, looping externally",
					"layer", i, "loop_start", l.LoopStart, "loop_end", l.LoopEnd)
				d.ExternalLooping = true
				break
			}
		}
	}

	for _, l := range d.Layers {
		if d.ExternalLooping || !s.LoopFlag {
			l.ForceLoop(false, 0, 0)
		} else {
			l.ForceLoop(true, s.LoopStart, s.LoopEnd)
		}
	}
}

func (s *Stream) renderLayered(out []int16, frames int) {
	d := s.Layers
	done := 0
	for done < frames {
		if s.LoopFlag && s.doLoop() {
			continue
		}
		todo := min(layerBufFrames, frames-done)
		if s.LoopFlag {
			// stop at loop points so the parent can take its snapshot and
			// rewind the layers
			todo = min(todo, s.samplesToDo(s.NumSamples, 0))
		}
		if todo <= 0 {
			s.silenceFrom(out, done, frames)
			return
		}

		ch := 0
		for _, l := range d.Layers {
			buf := d.buf[:todo*l.Channels]
			l.render(buf, todo)
			for lc := 0; lc < l.Channels; lc++ {
				for f := 0; f < todo; f++ {
					out[(done+f)*s.Channels+ch] = buf[f*l.Channels+lc]
				}
				ch++
			}
		}
		done += todo
		s.advance(todo)
	}
}

// loopLayered brings layers back to the loop start after the parent rewound.
func (s *Stream) loopLayered() {
	d := s.Layers
	for _, l := range d.Layers {
		if d.ExternalLooping {
			l.Reset()
			l.skipSamples(s.LoopStart)
			continue
		}
		if l.currentSample != l.LoopEnd {
			// the layer drifted: force its loop end
			l.currentSample = l.LoopEnd
		}
		l.loopCount = s.loopCount - 1
		l.doLoop()
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
