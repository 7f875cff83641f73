package vgmstream

import (
	"fmt"
	"strings"
)

// BodyMode restricts playback to one part of a looping stream.
type BodyMode int

const (
	BodyFull  BodyMode = iota
	BodyIntro          // up to the loop start
	BodyMain           // the loop region once
	BodyOutro          // after the loop end
)

func (m BodyMode) String() string {
	switch m {
	case BodyFull:
		return "full"
	case BodyIntro:
		return "intro"
	case BodyMain:
		return "main"
	case BodyOutro:
		return "outro"
	}
	return fmt.Sprintf("body(%d)", int(m))
}

// ParseBodyMode accepts the String names.
func ParseBodyMode(name string) (BodyMode, error) {
	switch strings.ToLower(name) {
	case "", "full":
		return BodyFull, nil
	case "intro":
		return BodyIntro, nil
	case "main", "loop":
		return BodyMain, nil
	case "outro":
		return BodyOutro, nil
	}
	return BodyFull, fmt.Errorf("unknown body mode %q", name)
}

// LoopRegion is a loop in samples, End exclusive.
type LoopRegion struct {
	Start int
	End   int
}

// PlayConfig drives config mode playback: how many loops, fades, padding
// and trims. Times ending in Sec are seconds and win over their sample
// counterparts when set.
type PlayConfig struct {
	// LoopCount is the number of loop passes before the fade. Fractions
	// are allowed unless IgnoreFade is set.
	LoopCount float64

	FadeTime  float64 // seconds
	FadeDelay float64 // seconds
	FadeShape FadeShape

	// IgnoreFade plays LoopCount loops and then the stream tail.
	IgnoreFade  bool
	PlayForever bool

	IgnoreLoop      bool
	ForceLoop       bool // full loop when the stream has none
	ReallyForceLoop bool // full loop always

	// Loop overrides the stream loop. With LoopInstall it only applies to
	// streams that have no loop.
	Loop        *LoopRegion
	LoopInstall bool

	PadBegin  int
	PadEnd    int
	TrimBegin int
	TrimEnd   int
	BodyTime  int

	PadBeginSec  float64
	PadEndSec    float64
	TrimBeginSec float64
	TrimEndSec   float64
	BodyTimeSec  float64

	BodyMode BodyMode
}

// DefaultPlayConfig returns the usual player settings: two loops and a ten
// second linear fade.
func DefaultPlayConfig() *PlayConfig {
	return &PlayConfig{
		LoopCount: 2,
		FadeTime:  10,
		FadeShape: FadeLinear,
	}
}

// playState is the derived timeline of config mode, in output samples:
// pad begin, body, fade, pad end.
type playState struct {
	padBeginDuration  int
	trimBeginDuration int
	bodyDuration      int
	fadeDuration      int
	padEndDuration    int
	playDuration      int

	fadeStart   int
	padEndStart int

	padBeginLeft  int
	trimBeginLeft int
	position      int
}

func secondsOr(sec float64, samples, rate int) int {
	if sec != 0 {
		return int(sec * float64(rate))
	}
	return samples
}

// applyModifiers changes the stream loop per the config. It runs once,
// before playback.
func applyModifiers(s *Stream, pc *PlayConfig) {
	if pc.Loop != nil && (!pc.LoopInstall || !s.LoopFlag) {
		s.ForceLoop(true, pc.Loop.Start, pc.Loop.End)
	}
	if pc.ReallyForceLoop {
		s.ForceLoop(true, 0, s.NumSamples)
	}
	if pc.ForceLoop && !s.LoopFlag {
		s.ForceLoop(true, 0, s.NumSamples)
	}

	if pc.BodyMode != BodyFull {
		applyBodyMode(s, pc)
	}

	if pc.IgnoreLoop {
		s.ForceLoop(false, 0, 0)
	}
	if !s.LoopFlag {
		pc.PlayForever = false
	}
	if pc.PlayForever {
		pc.IgnoreFade = false
	}
	if pc.IgnoreFade {
		if s.LoopFlag {
			s.setLoopTarget(max(int(pc.LoopCount), 1))
		}
		pc.FadeTime = 0
		pc.FadeDelay = 0
	}
}

// applyBodyMode turns an intro/main/outro request into trims over a
// non-looping stream.
func applyBodyMode(s *Stream, pc *PlayConfig) {
	if !s.LoopFlag {
		return
	}
	start, end := s.LoopStart, s.LoopEnd
	switch pc.BodyMode {
	case BodyIntro:
		pc.TrimBegin, pc.TrimEnd = 0, s.NumSamples-start
	case BodyMain:
		pc.TrimBegin, pc.TrimEnd = start, s.NumSamples-end
	case BodyOutro:
		pc.TrimBegin, pc.TrimEnd = end, 0
	}
	pc.TrimBeginSec, pc.TrimEndSec = 0, 0
	pc.BodyTime, pc.BodyTimeSec = 0, 0
	pc.IgnoreLoop = true
}

// newPlayState computes the timeline for a stream after modifiers ran.
func newPlayState(s *Stream, pc *PlayConfig) playState {
	rate := s.SampleRate
	var ps playState

	padBegin := secondsOr(pc.PadBeginSec, pc.PadBegin, rate)
	padEnd := secondsOr(pc.PadEndSec, pc.PadEnd, rate)
	trimBegin := secondsOr(pc.TrimBeginSec, pc.TrimBegin, rate)
	trimEnd := secondsOr(pc.TrimEndSec, pc.TrimEnd, rate)
	bodyTime := secondsOr(pc.BodyTimeSec, pc.BodyTime, rate)

	ps.padBeginDuration = padBegin
	ps.trimBeginDuration = trimBegin

	switch {
	case bodyTime > 0:
		ps.bodyDuration = bodyTime
	case s.LoopFlag:
		loops := pc.LoopCount
		ps.bodyDuration = s.LoopStart
		if pc.IgnoreFade {
			ps.bodyDuration += (s.LoopEnd - s.LoopStart) * max(int(loops), 1)
			ps.bodyDuration += s.NumSamples - s.LoopEnd
		} else {
			ps.bodyDuration += int(float64(s.LoopEnd-s.LoopStart) * loops)
		}
	default:
		ps.bodyDuration = s.NumSamples
	}

	ps.bodyDuration -= trimBegin + trimEnd
	if s.LoopFlag {
		ps.bodyDuration += int(pc.FadeDelay * float64(rate))
		ps.fadeDuration = int(pc.FadeTime * float64(rate))
	}
	ps.padEndDuration = padEnd

	ps.padBeginDuration = max(ps.padBeginDuration, 0)
	ps.bodyDuration = max(ps.bodyDuration, 0)
	ps.fadeDuration = max(ps.fadeDuration, 0)
	ps.padEndDuration = max(ps.padEndDuration, 0)
	ps.playDuration = ps.padBeginDuration + ps.bodyDuration + ps.fadeDuration + ps.padEndDuration

	ps.padBeginLeft = ps.padBeginDuration
	ps.trimBeginLeft = ps.trimBeginDuration
	ps.fadeStart = ps.padBeginDuration + ps.bodyDuration
	ps.padEndStart = ps.fadeStart + ps.fadeDuration
	return ps
}
