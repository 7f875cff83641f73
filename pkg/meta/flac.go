package meta

import (
	"github.com/mewkiz/flac"
	flacmeta "github.com/mewkiz/flac/meta"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

// initFLAC parses native FLAC files. Vorbis comment loop tags are honoured
// as in Ogg.
func initFLAC(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "flac"
	if !sf.MatchID(0, "fLaC") {
		return nil, notFormat(op)
	}
	stream, err := flac.Parse(sf.SectionReader(0, -1))
	if err != nil {
		return nil, vgmerr.Wrap(vgmerr.MalformedHeader, op, err)
	}
	info := stream.Info
	if info == nil || info.NSamples == 0 {
		return nil, malformed(op, "no sample count in STREAMINFO")
	}

	s := vgmstream.New(int(info.NChannels), false)
	s.Meta = "FLAC"
	s.SampleRate = int(info.SampleRate)
	s.NumSamples = int(info.NSamples)
	s.Coding = coding.FLAC
	s.Layout = vgmstream.LayoutFlat

	var tags loopTags
	for _, b := range stream.Blocks {
		vc, ok := b.Body.(*flacmeta.VorbisComment)
		if !ok {
			continue
		}
		for _, kv := range vc.Tags {
			tags.add(kv[0] + "=" + kv[1])
		}
	}
	if ls, le, ok := tags.region(s.NumSamples); ok {
		s.LoopFlag = true
		s.LoopStart, s.LoopEnd = ls, min(le, s.NumSamples)
	}

	if err := s.OpenCodec(sf, coding.CodecConfig{}); err != nil {
		return nil, err
	}
	return finish(s, sf, 0)
}
