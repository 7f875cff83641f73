package vgmstream

import (
	"fmt"
	"math"
)

// FadeShape is a fade curve, named by the usual one letter codes.
type FadeShape byte

const (
	FadeLinear      FadeShape = 'T'
	FadeExponential FadeShape = 'E'
	FadeLogarithmic FadeShape = 'L'
	FadeRaisedSine  FadeShape = 'H'
	FadeQuarterSine FadeShape = 'Q'
	FadeParabola    FadeShape = 'p'
	FadeInvParabola FadeShape = 'P'
)

// ParseFadeShape accepts a shape letter. The bracket aliases map to the
// exponential and raised sine curves.
func ParseFadeShape(s string) (FadeShape, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("bad fade shape %q", s)
	}
	switch c := FadeShape(s[0]); c {
	case '{', '}':
		return FadeExponential, nil
	case '(', ')':
		return FadeRaisedSine, nil
	case FadeLinear, FadeExponential, FadeLogarithmic, FadeRaisedSine,
		FadeQuarterSine, FadeParabola, FadeInvParabola:
		return c, nil
	}
	return 0, fmt.Errorf("unknown fade shape %q", s)
}

// fadeGain maps a linear index in [0, 1] to the curve's gain.
func fadeGain(shape FadeShape, index float64) float64 {
	if index <= 0.0001 || index >= 0.9999 {
		return index
	}
	switch shape {
	case FadeExponential:
		return math.Exp(-5.75646273248511 * (1 - index))
	case FadeLogarithmic:
		return 1 - math.Exp(-5.75646273248511*index)
	case FadeRaisedSine:
		return (1 - math.Cos(index*math.Pi)) / 2
	case FadeQuarterSine:
		return math.Sin(index * math.Pi / 2)
	case FadeParabola:
		return 1 - math.Sqrt(1-index)
	case FadeInvParabola:
		return 1 - (1-index)*(1-index)
	}
	return index
}

// fadeOut scales frames of buf whose timeline position falls inside
// [start, start+duration). pos is the position of buf's first frame.
func fadeOut(buf []int16, channels, frames, pos, start, duration int, shape FadeShape) {
	if duration <= 0 {
		return
	}
	end := start + duration
	for f := 0; f < frames; f++ {
		p := pos + f
		if p < start || p >= end {
			continue
		}
		gain := fadeGain(shape, float64(end-p)/float64(duration))
		frame := buf[f*channels : (f+1)*channels]
		for ch, v := range frame {
			frame[ch] = int16(float64(v) * gain)
		}
	}
}
