package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/drgolem/vgmtools/pkg/meta"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

// playOptions are the playback flags shared by decode, play and transform.
type playOptions struct {
	subsong int

	loops       float64
	fadeTime    float64
	fadeDelay   float64
	fadeShape   string
	ignoreFade  bool
	playForever bool

	ignoreLoop      bool
	forceLoop       bool
	reallyForceLoop bool
	loopStart       int
	loopEnd         int
	loopInstall     bool

	padBegin  float64
	padEnd    float64
	trimBegin float64
	trimEnd   float64
	bodyTime  float64
	bodyMode  string
}

func (o *playOptions) addFlags(cmd *cobra.Command) {
	def := vgmstream.DefaultPlayConfig()
	f := cmd.Flags()
	f.IntVar(&o.subsong, "subsong", 0, "Subsong to open (1-based, 0 for the default)")
	f.Float64Var(&o.loops, "loops", def.LoopCount, "Loop count before the fade")
	f.Float64Var(&o.fadeTime, "fade", def.FadeTime, "Fade out time in seconds")
	f.Float64Var(&o.fadeDelay, "fade-delay", 0, "Delay in seconds before the fade starts")
	f.StringVar(&o.fadeShape, "fade-shape", "T", "Fade curve: T, E, L, H, Q, p or P")
	f.BoolVar(&o.ignoreFade, "ignore-fade", false, "Play the loops and then the stream tail, no fade")
	f.BoolVar(&o.playForever, "play-forever", false, "Loop until stopped")
	f.BoolVar(&o.ignoreLoop, "ignore-loop", false, "Ignore the stream's loop points")
	f.BoolVar(&o.forceLoop, "force-loop", false, "Loop the whole stream when it has no loop")
	f.BoolVar(&o.reallyForceLoop, "really-force-loop", false, "Loop the whole stream even when it has a loop")
	f.IntVar(&o.loopStart, "loop-start", -1, "Loop start in samples (needs --loop-end)")
	f.IntVar(&o.loopEnd, "loop-end", -1, "Loop end in samples, exclusive")
	f.BoolVar(&o.loopInstall, "loop-install", false, "Use --loop-start/--loop-end only when the stream has no loop")
	f.Float64Var(&o.padBegin, "pad-begin", 0, "Silence in seconds before the stream")
	f.Float64Var(&o.padEnd, "pad-end", 0, "Silence in seconds after the stream")
	f.Float64Var(&o.trimBegin, "trim-begin", 0, "Seconds skipped at the start")
	f.Float64Var(&o.trimEnd, "trim-end", 0, "Seconds cut at the end")
	f.Float64Var(&o.bodyTime, "body-time", 0, "Fixed body length in seconds instead of loops")
	f.StringVar(&o.bodyMode, "body", "full", "Part of a looping stream to play: full, intro, main or outro")
}

// playConfig builds the config for s. Embedded composition settings are the
// base and only flags given on the command line override them.
func (o *playOptions) playConfig(cmd *cobra.Command, s *vgmstream.Stream) (*vgmstream.PlayConfig, error) {
	pc := vgmstream.DefaultPlayConfig()
	if s.Config != nil {
		cfg := *s.Config
		pc = &cfg
	}
	changed := cmd.Flags().Changed

	if changed("loops") {
		if o.loops < 0 {
			return nil, fmt.Errorf("invalid loop count %v", o.loops)
		}
		pc.LoopCount = o.loops
	}
	if changed("fade") {
		pc.FadeTime = o.fadeTime
	}
	if changed("fade-delay") {
		pc.FadeDelay = o.fadeDelay
	}
	if changed("fade-shape") {
		shape, err := vgmstream.ParseFadeShape(o.fadeShape)
		if err != nil {
			return nil, err
		}
		pc.FadeShape = shape
	}
	if changed("ignore-fade") {
		pc.IgnoreFade = o.ignoreFade
	}
	if changed("play-forever") {
		pc.PlayForever = o.playForever
	}
	if changed("ignore-loop") {
		pc.IgnoreLoop = o.ignoreLoop
	}
	if changed("force-loop") {
		pc.ForceLoop = o.forceLoop
	}
	if changed("really-force-loop") {
		pc.ReallyForceLoop = o.reallyForceLoop
	}
	if changed("loop-start") || changed("loop-end") {
		start, end := o.loopStart, o.loopEnd
		if start < 0 {
			start = 0
		}
		if end < 0 {
			end = s.NumSamples
		}
		if start >= end {
			return nil, fmt.Errorf("invalid loop %d..%d", start, end)
		}
		pc.Loop = &vgmstream.LoopRegion{Start: start, End: end}
		pc.LoopInstall = o.loopInstall
	}

	seconds := []struct {
		name string
		val  float64
		dst  *float64
	}{
		{"pad-begin", o.padBegin, &pc.PadBeginSec},
		{"pad-end", o.padEnd, &pc.PadEndSec},
		{"trim-begin", o.trimBegin, &pc.TrimBeginSec},
		{"trim-end", o.trimEnd, &pc.TrimEndSec},
		{"body-time", o.bodyTime, &pc.BodyTimeSec},
	}
	for _, sec := range seconds {
		if !changed(sec.name) {
			continue
		}
		if sec.val < 0 {
			return nil, fmt.Errorf("invalid --%s %v", sec.name, sec.val)
		}
		*sec.dst = sec.val
	}

	if changed("body") {
		mode, err := vgmstream.ParseBodyMode(o.bodyMode)
		if err != nil {
			return nil, err
		}
		pc.BodyMode = mode
	}
	return pc, nil
}

// openStream opens path selecting subsong.
func openStream(path string, subsong int) (*vgmstream.Stream, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("input file: %w", err)
	}
	if subsong == 0 {
		return meta.OpenFile(path)
	}
	sf, err := streamfile.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := meta.OpenSubsong(sf, subsong)
	if err != nil {
		sf.Close()
		return nil, err
	}
	return s, nil
}

// renderAll plays c to the end and returns the interleaved samples.
func renderAll(c *vgmstream.Controller) ([]int16, error) {
	if c.Forever() {
		return nil, fmt.Errorf("stream plays forever; disable --play-forever or the loop")
	}
	const chunk = 4096
	ch := c.Channels()
	out := make([]int16, 0, c.TotalSamples()*ch)
	buf := make([]int16, chunk*ch)
	for {
		n := c.Render(buf, chunk)
		if n == 0 {
			break
		}
		out = append(out, buf[:n*ch]...)
	}
	slog.Debug("Rendered", "samples", len(out)/ch, "expected", c.TotalSamples())
	return out, nil
}

func int16ToBytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, v := range pcm {
		out[i*2] = byte(v)
		out[i*2+1] = byte(uint16(v) >> 8)
	}
	return out
}
