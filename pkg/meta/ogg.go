package meta

import (
	"github.com/jfreymuth/oggvorbis"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

// initOgg parses Ogg Vorbis files. Loop points come from comment tags.
func initOgg(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "ogg"
	if !sf.MatchID(0, "OggS") {
		return nil, notFormat(op)
	}
	r, err := oggvorbis.NewReader(sf.SectionReader(0, -1))
	if err != nil {
		return nil, vgmerr.Wrap(vgmerr.MalformedHeader, op, err)
	}

	s := vgmstream.New(r.Channels(), false)
	s.Meta = "Ogg Vorbis"
	s.SampleRate = r.SampleRate()
	s.NumSamples = int(r.Length())
	s.Coding = coding.Vorbis
	s.Layout = vgmstream.LayoutFlat

	var tags loopTags
	for _, c := range r.CommentHeader().Comments {
		tags.add(c)
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
