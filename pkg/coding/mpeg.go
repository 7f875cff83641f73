package coding

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// cursorReader feeds a decoder from the first channel cursor, advancing it
// by the bytes consumed, so block layouts can move the cursor between frames.
type cursorReader struct {
	st *ChannelState
}

func (r *cursorReader) Read(p []byte) (int, error) {
	if r.st == nil || r.st.SF == nil {
		return 0, io.EOF
	}
	n, err := r.st.SF.ReadAt(p, r.st.Offset)
	r.st.Offset += int64(n)
	if n == 0 && err != nil {
		return 0, io.EOF
	}
	return n, nil
}

// mpegCodec decodes MPEG Layer III frames through go-mp3. The decoder is
// created lazily at the cursor; Flush drops it together with its bit
// reservoir.
type mpegCodec struct {
	channels int
	skip     int
	toSkip   int

	feed  cursorReader
	dec   *mp3.Decoder
	raw   []byte
	queue pcmQueue
	warn  warnOnce
}

func newMPEG(cfg CodecConfig) *mpegCodec {
	return &mpegCodec{
		channels: cfg.Channels,
		skip:     cfg.Skip,
		toSkip:   cfg.Skip,
		raw:      make([]byte, 1152*4),
	}
}

func (c *mpegCodec) Decode(chs []ChannelState, out []int16, samples int) {
	if len(chs) > 0 {
		c.feed.st = &chs[0]
	}
	fillFrames(&c.queue, out, samples, c.channels, c.next)
}

func (c *mpegCodec) next() bool {
	for {
		if c.dec == nil {
			dec, err := mp3.NewDecoder(&c.feed)
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					c.warn.warn("mpeg: cannot sync", "error", err)
				}
				return false
			}
			c.dec = dec
		}

		n, err := c.dec.Read(c.raw)
		if n == 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				c.warn.warn("mpeg: frame error", "error", err)
			}
			return false
		}

		// go-mp3 always yields 16-bit little endian stereo
		frames := n / 4
		for i := 0; i < frames; i++ {
			l := int16(binary.LittleEndian.Uint16(c.raw[i*4:]))
			r := int16(binary.LittleEndian.Uint16(c.raw[i*4+2:]))
			c.queue.buf = append(c.queue.buf, l)
			for ch := 1; ch < c.channels; ch++ {
				if ch == 1 {
					c.queue.buf = append(c.queue.buf, r)
				} else {
					c.queue.buf = append(c.queue.buf, 0)
				}
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

func (c *mpegCodec) Reset(chs []ChannelState) {
	c.Flush()
	c.toSkip = c.skip
}

func (c *mpegCodec) Flush() {
	c.dec = nil
	c.queue.clear()
}

func (c *mpegCodec) Close() error {
	c.Flush()
	return nil
}
