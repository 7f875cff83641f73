// Package vgmstream is the stream composition and playback engine.
//
// A container parser fills a Stream (channel set, codec, loop region and a
// layout), opens its channel cursors and calls Setup. From then on only the
// engine moves positions and cursors: layouts pull codec samples, block
// updaters walk container chunks, and the loop detector rewinds state at the
// loop end. Segmented and layered streams own their sub-streams.
package vgmstream

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
)

// Layout selects how channels are located in the source and composed over time.
type Layout int

const (
	// LayoutFlat decodes each channel from its own cursor, or one shared
	// cursor for codecs that interleave inside a frame.
	LayoutFlat Layout = iota
	// LayoutInterleave alternates fixed-size chunks of each channel.
	LayoutInterleave
	// LayoutBlocked walks container blocks through a BlockUpdater.
	LayoutBlocked
	// LayoutSegmented plays sub-streams one after another.
	LayoutSegmented
	// LayoutLayered mixes sub-streams side by side into more channels.
	LayoutLayered
)

// String returns the lowercase layout name.
func (l Layout) String() string {
	switch l {
	case LayoutFlat:
		return "flat"
	case LayoutInterleave:
		return "interleave"
	case LayoutBlocked:
		return "blocked"
	case LayoutSegmented:
		return "segmented"
	case LayoutLayered:
		return "layered"
	}
	return fmt.Sprintf("layout(%d)", int(l))
}

// Stream is a decodable stream descriptor plus its playback state.
type Stream struct {
	Channels   int
	SampleRate int
	NumSamples int

	Coding coding.Type
	Layout Layout
	Meta   string
	Name   string

	// Loop region in samples. LoopEnd is exclusive.
	LoopFlag  bool
	LoopStart int
	LoopEnd   int

	// Interleave layout: bytes per channel per stride, with optional
	// different sizes for the first and the last stride.
	Interleave          int64
	InterleaveFirst     int64
	InterleaveFirstSkip int64
	InterleaveLast      int64

	// CodecConfig and CodecBigEndian are opaque flags consulted by block
	// updaters (language, version and endianness of block headers).
	CodecConfig    uint32
	CodecBigEndian bool

	Ch    []coding.ChannelState
	Codec coding.Codec

	Block    BlockState
	Segments *SegmentedLayout
	Layers   *LayeredLayout

	StreamIndex int
	NumStreams  int

	// Config is playback setup carried by the container itself (compositions
	// with play commands). Nil when there is none.
	Config *PlayConfig

	currentSample    int
	samplesIntoBlock int

	hitLoop    bool
	loopCount  int
	loopTarget int
	loopSnap   snapshot
	start      snapshot

	setup   bool
	closed  bool
	sources []*streamfile.StreamFile
	scratch []int16
}

// snapshot is the restorable playback state of a single stream.
type snapshot struct {
	ch               []coding.ChannelState
	currentSample    int
	samplesIntoBlock int
	block            BlockState
	loopFlag         bool
}

func (s *Stream) save(dst *snapshot) {
	dst.ch = append(dst.ch[:0], s.Ch...)
	dst.currentSample = s.currentSample
	dst.samplesIntoBlock = s.samplesIntoBlock
	dst.block = s.Block
	dst.loopFlag = s.LoopFlag
}

func (s *Stream) restoreChannels(src *snapshot) {
	copy(s.Ch, src.ch)
	s.samplesIntoBlock = src.samplesIntoBlock
	s.Block = src.block
}

// New allocates a stream with channels cursors.
func New(channels int, loop bool) *Stream {
	if channels < 1 {
		channels = 1
	}
	return &Stream{
		Channels: channels,
		LoopFlag: loop,
		Ch:       make([]coding.ChannelState, channels),
	}
}

// Open points every channel cursor into sf, starting at start. Interleaved
// streams place channel k at its first interleave block; sample-interleaved
// codecs at their sample slot; everything else shares start. Each channel
// gets its own clone of sf.
func (s *Stream) Open(sf *streamfile.StreamFile, start int64) error {
	if sf == nil {
		return vgmerr.New(vgmerr.MalformedHeader, "open "+s.Meta, "no source")
	}
	if len(s.Ch) != s.Channels {
		return vgmerr.New(vgmerr.MalformedHeader, "open "+s.Meta, "%d cursors for %d channels", len(s.Ch), s.Channels)
	}
	for k := range s.Ch {
		off := start + s.channelStart(k)
		s.OpenChannel(k, sf, off)
	}
	return nil
}

// OpenChannel points channel k at off in sf. Used directly by multi-file streams.
func (s *Stream) OpenChannel(k int, sf *streamfile.StreamFile, off int64) {
	c := sf.Clone()
	s.sources = append(s.sources, c)
	s.Ch[k].SF = c
	s.Ch[k].StartOffset = off
	s.Ch[k].Offset = off
}

func (s *Stream) channelStart(k int) int64 {
	if s.Layout == LayoutInterleave {
		if s.InterleaveFirst > 0 {
			return int64(k)*s.InterleaveFirst + s.InterleaveFirstSkip
		}
		return int64(k) * s.Interleave
	}
	switch s.Coding {
	case coding.PCM16Int, coding.PCM16IntBE:
		return int64(k) * 2
	case coding.PCM8Int, coding.PCM8UInt, coding.SDX2Int:
		return int64(k)
	}
	return 0
}

// OpenCodec creates the frame codec for s over sf.
func (s *Stream) OpenCodec(sf *streamfile.StreamFile, cfg coding.CodecConfig) error {
	if cfg.Channels == 0 {
		cfg.Channels = s.Channels
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = s.SampleRate
	}
	c, err := coding.NewCodec(s.Coding, sf, cfg)
	if err != nil {
		return fmt.Errorf("open %s codec: %w", s.Coding, err)
	}
	s.Codec = c
	return nil
}

// Setup validates the descriptor and records the start state used by Reset.
// Inconsistent loop points are dropped with a warning.
func (s *Stream) Setup() error {
	op := "setup " + s.Meta
	if s.Channels < 1 || len(s.Ch) != s.Channels {
		return vgmerr.New(vgmerr.MalformedHeader, op, "bad channel count %d", s.Channels)
	}
	if s.SampleRate <= 0 {
		return vgmerr.New(vgmerr.MalformedHeader, op, "bad sample rate %d", s.SampleRate)
	}
	if s.NumSamples <= 0 {
		return vgmerr.New(vgmerr.MalformedHeader, op, "no samples")
	}
	if s.Layout != LayoutSegmented && s.Layout != LayoutLayered {
		if !s.Coding.Supported() {
			return &vgmerr.Error{Kind: vgmerr.UnsupportedCodec, Op: op + " " + s.Coding.String()}
		}
		if s.Coding.IsFrameCodec() && s.Codec == nil {
			return vgmerr.New(vgmerr.MalformedHeader, op, "%s without codec", s.Coding)
		}
	}

	switch s.Layout {
	case LayoutInterleave:
		if s.Channels > 1 && s.Interleave <= 0 {
			return vgmerr.New(vgmerr.MalformedHeader, op, "interleave not set")
		}
	case LayoutBlocked:
		if s.Block.Updater == BlockNone {
			return vgmerr.New(vgmerr.MalformedHeader, op, "blocked layout without updater")
		}
	case LayoutSegmented:
		if s.Segments == nil {
			return vgmerr.New(vgmerr.BadComposition, op, "no segments")
		}
	case LayoutLayered:
		if s.Layers == nil {
			return vgmerr.New(vgmerr.BadComposition, op, "no layers")
		}
	}

	s.checkLoop()

	s.currentSample = 0
	s.samplesIntoBlock = 0
	s.hitLoop = false
	s.loopCount = 0
	s.save(&s.start)
	s.setup = true
	return nil
}

func (s *Stream) checkLoop() {
	if !s.LoopFlag {
		s.LoopStart, s.LoopEnd = 0, 0
		return
	}
	if s.LoopStart < 0 || s.LoopStart >= s.LoopEnd || s.LoopEnd > s.NumSamples {
		slog.Warn("loop disabled", "meta", s.Meta, "loop_start", s.LoopStart, "loop_end", s.LoopEnd, "samples", s.NumSamples)
		s.LoopFlag = false
		s.LoopStart, s.LoopEnd = 0, 0
	}
}

// Reset restores the state recorded by Setup, recursively for sub-streams.
func (s *Stream) Reset() {
	if !s.setup {
		return
	}
	s.restoreChannels(&s.start)
	s.currentSample = 0
	s.samplesIntoBlock = 0
	s.LoopFlag = s.start.loopFlag
	s.hitLoop = false
	s.loopCount = 0

	if s.Codec != nil {
		s.Codec.Reset(s.Ch)
	}
	switch s.Layout {
	case LayoutSegmented:
		s.Segments.reset()
	case LayoutLayered:
		s.Layers.reset()
	}
}

// ForceLoop installs (or removes) a loop region after Setup. Layers that
// loop internally follow the new region.
func (s *Stream) ForceLoop(loop bool, start, end int) {
	if loop {
		if end > s.NumSamples || end <= 0 {
			end = s.NumSamples
		}
		if start < 0 || start >= end {
			start = 0
		}
		s.LoopStart, s.LoopEnd = start, end
	} else {
		s.LoopStart, s.LoopEnd = 0, 0
	}
	s.LoopFlag = loop
	s.start.loopFlag = loop
	s.hitLoop = false

	if s.Layout == LayoutLayered && !s.Layers.ExternalLooping {
		for _, l := range s.Layers.Layers {
			l.ForceLoop(loop, s.LoopStart, s.LoopEnd)
		}
	}
}

// setLoopTarget makes the stream stop looping after n loops and play its tail.
func (s *Stream) setLoopTarget(n int) {
	s.loopTarget = n
	if s.Layout == LayoutLayered && !s.Layers.ExternalLooping {
		for _, l := range s.Layers.Layers {
			l.setLoopTarget(n)
		}
	}
}

// Close releases codecs, sources and sub-streams. It is safe to call twice.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.Codec != nil {
		keep(s.Codec.Close())
	}
	for _, sf := range s.sources {
		keep(sf.Close())
	}
	if s.Segments != nil {
		for _, seg := range s.Segments.Segments {
			keep(seg.Close())
		}
	}
	if s.Layers != nil {
		for _, l := range s.Layers.Layers {
			keep(l.Close())
		}
	}
	return firstErr
}

// CurrentSample is the decoder position inside the stream timeline.
func (s *Stream) CurrentSample() int {
	return s.currentSample
}

// Finished reports whether a non-looping stream reached its end, or a
// blocked stream ran into a terminal block.
func (s *Stream) Finished() bool {
	if s.LoopFlag {
		return false
	}
	if s.currentSample >= s.NumSamples {
		return true
	}
	return s.Layout == LayoutBlocked && s.Block.Phase == BlockFinished
}

// Describe returns a human readable summary of the stream.
func (s *Stream) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sample rate: %d Hz\n", s.SampleRate)
	fmt.Fprintf(&b, "channels: %d\n", s.Channels)
	fmt.Fprintf(&b, "stream total samples: %d (%s)\n", s.NumSamples, formatDuration(s.NumSamples, s.SampleRate))
	if s.LoopFlag {
		fmt.Fprintf(&b, "loop start: %d samples (%s)\n", s.LoopStart, formatDuration(s.LoopStart, s.SampleRate))
		fmt.Fprintf(&b, "loop end: %d samples (%s)\n", s.LoopEnd, formatDuration(s.LoopEnd, s.SampleRate))
	}
	fmt.Fprintf(&b, "encoding: %s\n", s.Coding)
	fmt.Fprintf(&b, "layout: %s", s.Layout)
	switch s.Layout {
	case LayoutBlocked:
		fmt.Fprintf(&b, " (%s)", s.Block.Updater)
	case LayoutInterleave:
		fmt.Fprintf(&b, "\ninterleave: %#x bytes", s.Interleave)
		if s.InterleaveFirst > 0 {
			fmt.Fprintf(&b, "\ninterleave first block: %#x bytes", s.InterleaveFirst)
		}
		if s.InterleaveLast > 0 {
			fmt.Fprintf(&b, "\ninterleave last block: %#x bytes", s.InterleaveLast)
		}
	case LayoutSegmented:
		fmt.Fprintf(&b, " (%d segments)", len(s.Segments.Segments))
	case LayoutLayered:
		fmt.Fprintf(&b, " (%d layers)", len(s.Layers.Layers))
	}
	b.WriteByte('\n')
	if s.Meta != "" {
		fmt.Fprintf(&b, "metadata from: %s\n", s.Meta)
	}
	if s.NumStreams > 1 {
		fmt.Fprintf(&b, "stream count: %d\n", s.NumStreams)
		fmt.Fprintf(&b, "stream index: %d\n", max(s.StreamIndex, 1))
	}
	if s.Name != "" {
		fmt.Fprintf(&b, "stream name: %s\n", s.Name)
	}
	return b.String()
}

func formatDuration(samples, rate int) string {
	if rate <= 0 {
		return "?"
	}
	secs := float64(samples) / float64(rate)
	m := int(secs) / 60
	return fmt.Sprintf("%d:%06.3f seconds", m, secs-float64(m*60))
}
