package coding

import (
	"errors"
	"io"

	"github.com/mewkiz/flac"

	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
)

// flacCodec decodes a native FLAC stream stored in a window of the source.
type flacCodec struct {
	channels int
	section  *io.SectionReader

	stream *flac.Stream
	toSkip int
	queue  pcmQueue
	warn   warnOnce
}

func newFLAC(sf *streamfile.StreamFile, cfg CodecConfig) (*flacCodec, error) {
	if sf == nil {
		return nil, vgmerr.New(vgmerr.MalformedHeader, "codec FLAC", "no source")
	}
	size := cfg.Size
	if size <= 0 {
		size = -1
	}
	c := &flacCodec{
		channels: cfg.Channels,
		section:  sf.SectionReader(cfg.Offset, size),
	}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *flacCodec) open() error {
	if _, err := c.section.Seek(0, io.SeekStart); err != nil {
		return vgmerr.Wrap(vgmerr.SourceIo, "codec FLAC", err)
	}
	stream, err := flac.NewSeek(c.section)
	if err != nil {
		return vgmerr.Wrap(vgmerr.MalformedHeader, "codec FLAC", err)
	}
	c.stream = stream
	return nil
}

func (c *flacCodec) Decode(chs []ChannelState, out []int16, samples int) {
	fillFrames(&c.queue, out, samples, c.channels, c.next)
}

func (c *flacCodec) next() bool {
	for {
		if c.stream == nil {
			return false
		}
		frame, err := c.stream.ParseNext()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.warn.warn("flac: frame error", "error", err)
			}
			return false
		}
		if len(frame.Subframes) == 0 {
			return false
		}

		shift := int(frame.BitsPerSample) - 16
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for ch := 0; ch < c.channels; ch++ {
				if ch >= len(frame.Subframes) {
					c.queue.buf = append(c.queue.buf, 0)
					continue
				}
				c.queue.buf = append(c.queue.buf, scaleTo16(frame.Subframes[ch].Samples[i], shift))
			}
		}

		if c.toSkip > 0 {
			c.toSkip -= c.queue.drop(c.toSkip, c.channels)
			if c.queue.frames(c.channels) == 0 {
				c.queue.clear()
				continue
			}
		}
		return true
	}
}

func scaleTo16(v int32, shift int) int16 {
	switch {
	case shift > 0:
		v >>= uint(shift)
	case shift < 0:
		v <<= uint(-shift)
	}
	return clamp16(v)
}

func (c *flacCodec) Reset(chs []ChannelState) {
	c.SeekSample(chs, 0)
}

// SeekSample positions the decoder on an absolute sample. The seek lands on
// the containing frame; the rest is decoded and dropped.
func (c *flacCodec) SeekSample(chs []ChannelState, sample int64) {
	c.queue.clear()
	c.toSkip = 0
	if c.stream == nil {
		if err := c.open(); err != nil {
			return
		}
	}
	got, err := c.stream.Seek(uint64(sample))
	if err != nil {
		// streams without seek points may refuse; start over and skip
		if err := c.open(); err != nil {
			c.warn.warn("flac: reopen failed", "error", err)
			c.stream = nil
			return
		}
		c.toSkip = int(sample)
		return
	}
	c.toSkip = int(sample - int64(got))
}

func (c *flacCodec) Flush() {
	c.queue.clear()
}

func (c *flacCodec) Close() error {
	c.queue.clear()
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
	return nil
}
