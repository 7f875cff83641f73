package coding

import (
	"log/slog"

	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
)

// Codec is a stateful frame decoder. It renders interleaved frames for all
// channels of its stream at once.
type Codec interface {
	// Decode writes samples frames (samples*channels values) into out.
	// Missing or broken data decodes as silence.
	Decode(chs []ChannelState, out []int16, samples int)

	// Reset returns the decoder to the stream start. Channel cursors are
	// restored by the caller.
	Reset(chs []ChannelState)

	// Flush drops internal buffers and history so that decoding restarts at
	// the current channel cursor.
	Flush()

	Close() error
}

// SampleSeeker is implemented by codecs that can position themselves on an
// absolute sample faster than decode-and-discard.
type SampleSeeker interface {
	SeekSample(chs []ChannelState, sample int64)
}

// CodecConfig carries what a frame codec needs to open its data.
type CodecConfig struct {
	Channels   int
	SampleRate int

	// Offset and Size delimit the codec data for window based codecs
	// (Vorbis, FLAC). Size <= 0 means to the end of the source.
	Offset int64
	Size   int64

	// Skip is the number of leading samples the decoder discards after
	// every reset (encoder delay).
	Skip int
}

// NewCodec opens a frame codec of type t over sf.
func NewCodec(t Type, sf *streamfile.StreamFile, cfg CodecConfig) (Codec, error) {
	if cfg.Channels <= 0 {
		return nil, vgmerr.New(vgmerr.MalformedHeader, "codec "+t.String(), "channels %d", cfg.Channels)
	}
	switch t {
	case MPEG:
		return newMPEG(cfg), nil
	case Vorbis:
		return newVorbis(sf, cfg)
	case Opus:
		return newOpus(cfg)
	case FLAC:
		return newFLAC(sf, cfg)
	}
	if !t.Supported() {
		return nil, &vgmerr.Error{Kind: vgmerr.UnsupportedCodec, Op: "codec " + t.String()}
	}
	return nil, vgmerr.New(vgmerr.UnsupportedCodec, "codec "+t.String(), "not a frame codec")
}

// pcmQueue holds decoded interleaved frames not yet handed out.
type pcmQueue struct {
	buf []int16
	pos int
}

func (q *pcmQueue) frames(channels int) int {
	return (len(q.buf) - q.pos) / channels
}

func (q *pcmQueue) take(out []int16, frames, channels int) {
	n := frames * channels
	copy(out[:n], q.buf[q.pos:q.pos+n])
	q.pos += n
}

func (q *pcmQueue) drop(frames, channels int) int {
	if avail := q.frames(channels); frames > avail {
		frames = avail
	}
	q.pos += frames * channels
	return frames
}

func (q *pcmQueue) clear() {
	q.buf = q.buf[:0]
	q.pos = 0
}

// fillFrames is the shared frame codec loop: it hands out queued frames and
// asks next for more until samples frames are written. When next reports no
// more data the rest of out is zeroed.
func fillFrames(q *pcmQueue, out []int16, samples, channels int, next func() bool) {
	done := 0
	for done < samples {
		if q.frames(channels) == 0 {
			q.clear()
			if !next() {
				clear(out[done*channels : samples*channels])
				return
			}
			continue
		}
		n := minInt(q.frames(channels), samples-done)
		q.take(out[done*channels:], n, channels)
		done += n
	}
}

// warnOnce logs the first decode problem of a codec instance.
type warnOnce struct {
	done bool
}

func (w *warnOnce) warn(msg string, args ...any) {
	if w.done {
		return
	}
	w.done = true
	slog.Warn(msg, args...)
}
