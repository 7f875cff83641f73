package vgmstream

import (
	"github.com/drgolem/vgmtools/pkg/coding"
)

// NewSilence returns a flat stream of samples frames of digital silence. It
// stands in for missing segments of a composition.
func NewSilence(channels, sampleRate, samples int) (*Stream, error) {
	s := New(channels, false)
	s.Coding = coding.Silence
	s.Layout = LayoutFlat
	s.Meta = "silence"
	s.SampleRate = sampleRate
	s.NumSamples = samples
	if err := s.Setup(); err != nil {
		return nil, err
	}
	return s, nil
}
