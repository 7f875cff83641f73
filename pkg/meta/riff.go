package meta

import (
	"io"

	"github.com/go-audio/wav"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

const wavFormatPCM = 1

// initRIFF parses PCM RIFF WAVE files. A "smpl" chunk loop becomes the
// stream loop.
func initRIFF(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "riff"
	if !sf.MatchID(0, "RIFF") || !sf.MatchID(0x08, "WAVE") {
		return nil, notFormat(op)
	}

	r := sf.SectionReader(0, -1)
	dec := wav.NewDecoder(r)
	if err := dec.FwdToPCM(); err != nil {
		return nil, vgmerr.Wrap(vgmerr.MalformedHeader, op, err)
	}
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, vgmerr.Wrap(vgmerr.SourceIo, op, err)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, vgmerr.New(vgmerr.UnsupportedCodec, op, "wave format 0x%04x", dec.WavAudioFormat)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		return nil, malformed(op, "no channels")
	}
	dataSize := min(int64(dec.PCMSize), sf.Size()-start)

	s := vgmstream.New(channels, false)
	s.Meta = "RIFF WAVE header"
	s.SampleRate = int(dec.SampleRate)
	s.Layout = vgmstream.LayoutFlat
	switch dec.BitDepth {
	case 16:
		s.Coding = coding.PCM16LE
		if channels > 1 {
			s.Coding = coding.PCM16Int
		}
	case 8:
		s.Coding = coding.PCM8U
		if channels > 1 {
			s.Coding = coding.PCM8UInt
		}
	default:
		return nil, vgmerr.New(vgmerr.UnsupportedCodec, op, "%d-bit PCM", dec.BitDepth)
	}
	s.NumSamples = int(coding.PCMBytesToSamples(dataSize, channels, int(dec.BitDepth)))

	if ls, le, ok := riffSamplerLoop(sf); ok {
		s.LoopFlag = true
		s.LoopStart, s.LoopEnd = ls, min(le, s.NumSamples)
	}
	return finish(s, sf, start)
}

// riffSamplerLoop returns the first "smpl" loop. Its end sample is
// inclusive in the chunk.
func riffSamplerLoop(sf *streamfile.StreamFile) (int, int, bool) {
	dec := wav.NewDecoder(sf.SectionReader(0, -1))
	dec.ReadMetadata()
	if dec.Metadata == nil || dec.Metadata.SamplerInfo == nil {
		return 0, 0, false
	}
	loops := dec.Metadata.SamplerInfo.Loops
	if len(loops) == 0 || loops[0] == nil {
		return 0, 0, false
	}
	return int(loops[0].Start), int(loops[0].End) + 1, true
}
