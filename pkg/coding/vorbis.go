package coding

import (
	"errors"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
)

// vorbisCodec decodes an Ogg Vorbis bitstream stored in a window of the
// source. The window is independent of the channel cursors.
type vorbisCodec struct {
	channels int
	section  *io.SectionReader

	dec   *oggvorbis.Reader
	fbuf  []float32
	queue pcmQueue
	warn  warnOnce
}

func newVorbis(sf *streamfile.StreamFile, cfg CodecConfig) (*vorbisCodec, error) {
	if sf == nil {
		return nil, vgmerr.New(vgmerr.MalformedHeader, "codec Vorbis", "no source")
	}
	size := cfg.Size
	if size <= 0 {
		size = -1
	}
	c := &vorbisCodec{
		channels: cfg.Channels,
		section:  sf.SectionReader(cfg.Offset, size),
		fbuf:     make([]float32, 4096*cfg.Channels),
	}
	if err := c.open(); err != nil {
		return nil, err
	}
	if c.dec.Channels() != cfg.Channels {
		return nil, vgmerr.New(vgmerr.MalformedHeader, "codec Vorbis",
			"bitstream has %d channels, header says %d", c.dec.Channels(), cfg.Channels)
	}
	return c, nil
}

func (c *vorbisCodec) open() error {
	if _, err := c.section.Seek(0, io.SeekStart); err != nil {
		return vgmerr.Wrap(vgmerr.SourceIo, "codec Vorbis", err)
	}
	dec, err := oggvorbis.NewReader(c.section)
	if err != nil {
		return vgmerr.Wrap(vgmerr.MalformedHeader, "codec Vorbis", err)
	}
	c.dec = dec
	return nil
}

// Length returns the stream length in samples when the bitstream is seekable.
func (c *vorbisCodec) Length() int64 {
	if c.dec == nil {
		return 0
	}
	return c.dec.Length()
}

func (c *vorbisCodec) Decode(chs []ChannelState, out []int16, samples int) {
	fillFrames(&c.queue, out, samples, c.channels, c.next)
}

func (c *vorbisCodec) next() bool {
	if c.dec == nil {
		return false
	}
	n, err := c.dec.Read(c.fbuf)
	if n == 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			c.warn.warn("vorbis: decode error", "error", err)
		}
		return false
	}
	for _, v := range c.fbuf[:n-n%c.channels] {
		c.queue.buf = append(c.queue.buf, floatToPCM16(v))
	}
	return true
}

func (c *vorbisCodec) Reset(chs []ChannelState) {
	c.queue.clear()
	if c.dec != nil && c.dec.SetPosition(0) == nil {
		return
	}
	if err := c.open(); err != nil {
		c.warn.warn("vorbis: reopen failed", "error", err)
		c.dec = nil
	}
}

// SeekSample positions the decoder on an absolute sample.
func (c *vorbisCodec) SeekSample(chs []ChannelState, sample int64) {
	c.queue.clear()
	if c.dec == nil {
		return
	}
	if err := c.dec.SetPosition(sample); err != nil {
		c.warn.warn("vorbis: seek failed", "sample", sample, "error", err)
	}
}

func (c *vorbisCodec) Flush() {
	c.queue.clear()
}

func (c *vorbisCodec) Close() error {
	c.queue.clear()
	c.dec = nil
	return nil
}

func floatToPCM16(v float32) int16 {
	s := v * 32768
	if s >= 32767 {
		return 32767
	}
	if s <= -32768 {
		return -32768
	}
	return int16(s)
}
