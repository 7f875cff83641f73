package coding

import (
	"github.com/thesyncim/gopus"

	"github.com/drgolem/vgmtools/pkg/vgmerr"
)

const (
	opusSampleRate    = 48000
	opusMaxFrame      = 5760 // 120 ms at 48 kHz
	opusMaxPacketSize = 0x4000
)

// opusCodec decodes Switch style Opus packets: a big endian u32 packet size,
// a 4 byte encoder final range and the raw packet, repeated. The packet
// cursor is the first channel offset.
type opusCodec struct {
	channels int
	skip     int
	toSkip   int

	dec    *gopus.Decoder
	st     *ChannelState
	packet []byte
	pcm    []int16
	queue  pcmQueue
	warn   warnOnce
}

func newOpus(cfg CodecConfig) (*opusCodec, error) {
	if cfg.Channels > 2 {
		return nil, vgmerr.New(vgmerr.UnsupportedCodec, "codec Opus", "%d channels", cfg.Channels)
	}
	dec, err := gopus.NewDecoder(opusSampleRate, cfg.Channels)
	if err != nil {
		return nil, vgmerr.Wrap(vgmerr.MalformedHeader, "codec Opus", err)
	}
	return &opusCodec{
		channels: cfg.Channels,
		skip:     cfg.Skip,
		toSkip:   cfg.Skip,
		dec:      dec,
		pcm:      make([]int16, opusMaxFrame*cfg.Channels),
	}, nil
}

func (c *opusCodec) Decode(chs []ChannelState, out []int16, samples int) {
	if len(chs) > 0 {
		c.st = &chs[0]
	}
	fillFrames(&c.queue, out, samples, c.channels, c.next)
}

func (c *opusCodec) next() bool {
	for {
		if c.st == nil || c.st.SF == nil {
			return false
		}
		size, err := c.st.SF.U32BE(c.st.Offset)
		if err != nil || size == 0 || size > opusMaxPacketSize {
			return false
		}
		if cap(c.packet) < int(size) {
			c.packet = make([]byte, size)
		}
		c.packet = c.packet[:size]
		if n, err := c.st.SF.ReadAt(c.packet, c.st.Offset+8); n < len(c.packet) {
			if err != nil {
				c.warn.warn("opus: truncated packet", "offset", c.st.Offset, "error", err)
			}
			return false
		}
		c.st.Offset += 8 + int64(size)

		n, err := c.dec.DecodeInt16(c.packet, c.pcm)
		if err != nil {
			// a broken packet is replaced by one frame of silence
			c.warn.warn("opus: packet error", "error", err)
			n = 960
			clear(c.pcm[:n*c.channels])
		}
		c.queue.buf = append(c.queue.buf, c.pcm[:n*c.channels]...)

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

func (c *opusCodec) Reset(chs []ChannelState) {
	c.Flush()
	c.toSkip = c.skip
}

func (c *opusCodec) Flush() {
	c.dec.Reset()
	c.queue.clear()
}

func (c *opusCodec) Close() error {
	c.queue.clear()
	return nil
}
