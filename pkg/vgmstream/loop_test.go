package vgmstream

import (
	"fmt"
	"testing"
)

type streamBuilder struct {
	name  string
	build func(t *testing.T) *Stream
}

func loopingBuilders() []streamBuilder {
	return []streamBuilder{
		{"flat", func(t *testing.T) *Stream {
			return loopPCM(t, ramp(3000, 0), 1000, 2500)
		}},
		{"interleave", func(t *testing.T) *Stream {
			s := psxInterleave(t, 20, 0x20, 1)
			s.ForceLoop(true, 100, 500)
			return s
		}},
		{"blocked", func(t *testing.T) *Stream {
			s := halpstStream(t, []int64{0x100, 0x100, 0x40}, 2)
			s.ForceLoop(true, 300, 1000)
			return s
		}},
		{"segmented", func(t *testing.T) *Stream {
			s, err := NewSegmented([]*Stream{
				pcmStream(t, 1, 8000, ramp(500, 0)),
				pcmStream(t, 1, 8000, ramp(700, 1000)),
				pcmStream(t, 1, 8000, ramp(300, 2000)),
			}, true, 1, 2)
			if err != nil {
				t.Fatal(err)
			}
			return s
		}},
		{"segmented interleave", func(t *testing.T) *Stream {
			s, err := NewSegmented([]*Stream{
				psxInterleave(t, 8, 0x10, 1),
				psxInterleave(t, 6, 0x20, 2),
			}, true, 0, 0)
			if err != nil {
				t.Fatal(err)
			}
			return s
		}},
		{"layered", func(t *testing.T) *Stream {
			return layeredLoop(t, false)
		}},
		{"layered external", func(t *testing.T) *Stream {
			return layeredLoop(t, true)
		}},
	}
}

func layeredLoop(t *testing.T, external bool) *Stream {
	t.Helper()
	s, err := NewLayered([]*Stream{
		loopPCM(t, ramp(1000, 0), 200, 900),
		setup(t, pcmStream(t, 2, 8000, ramp(2*1000, 7000))),
	}, external)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func plainBuilders() []streamBuilder {
	return []streamBuilder{
		{"flat", func(t *testing.T) *Stream {
			return setup(t, pcmStream(t, 2, 8000, ramp(2*1500, 0)))
		}},
		{"interleave", func(t *testing.T) *Stream {
			return psxInterleave(t, 30, 0x10, 4)
		}},
		{"blocked", func(t *testing.T) *Stream {
			return halpstStream(t, []int64{0x80, 0x100, 0x40}, 6)
		}},
		{"segmented", func(t *testing.T) *Stream {
			s, err := NewSegmented([]*Stream{
				pcmStream(t, 1, 8000, ramp(400, 0)),
				pcmStream(t, 1, 8000, ramp(900, 100)),
			}, false, 0, 0)
			if err != nil {
				t.Fatal(err)
			}
			return s
		}},
		{"layered", func(t *testing.T) *Stream {
			s, err := NewLayered([]*Stream{
				psxInterleave(t, 30, 0x10, 5),
				setup(t, pcmStream(t, 1, 44100, ramp(840, 0))),
			}, false)
			if err != nil {
				t.Fatal(err)
			}
			return s
		}},
	}
}

func TestLoopIdentity(t *testing.T) {
	for _, b := range loopingBuilders() {
		t.Run(b.name, func(t *testing.T) {
			s := b.build(t)
			c := NewController(s, nil)
			start, end, ok := c.LoopSamples()
			if !ok {
				t.Fatal("stream does not loop")
			}
			body := end - start
			ch := s.Channels

			out, n := renderChunks(c, end+2*body)
			if n != end+2*body {
				t.Fatalf("rendered %d frames, want %d", n, end+2*body)
			}
			first := out[start*ch : end*ch]
			for pass := 1; pass <= 2; pass++ {
				again := out[(start+pass*body)*ch : (end+pass*body)*ch]
				if i := firstDiff(first, again); i >= 0 {
					t.Fatalf("pass %d differs at value %d: %d != %d", pass, i, again[i], first[i])
				}
			}
		})
	}
}

func TestResetIdempotence(t *testing.T) {
	all := append(loopingBuilders(), plainBuilders()...)
	for _, b := range all {
		t.Run(b.name, func(t *testing.T) {
			const frames = 1700
			c := NewController(b.build(t), nil)
			renderChunks(c, frames)
			c.Reset()
			again, _ := renderChunks(c, frames)

			want, _ := renderChunks(NewController(b.build(t), nil), frames)
			if i := firstDiff(again, want); i >= 0 {
				t.Fatalf("after reset value %d differs", i)
			}
		})
	}
}

// checkSeek compares seek(k)+render(n) against the tail of a fresh
// render(k+n), and against a backward seek from further ahead.
func checkSeek(t *testing.T, build func(t *testing.T) *Controller, k, n int) {
	t.Helper()
	ref := build(t)
	ch := ref.Channels()
	all, got := renderChunks(ref, k+n)
	var want []int16
	if got > k {
		want = all[k*ch:]
	}

	fwd := build(t)
	fwd.Seek(k)
	out, _ := renderChunks(fwd, n)
	if i := firstDiff(out, want); i >= 0 {
		t.Fatalf("seek %d: value %d differs (len %d, want %d)", k, i, len(out), len(want))
	}

	back := build(t)
	renderChunks(back, k+n+333)
	back.Seek(k)
	out, _ = renderChunks(back, n)
	if i := firstDiff(out, want); i >= 0 {
		t.Fatalf("backward seek %d: value %d differs (len %d, want %d)", k, i, len(out), len(want))
	}
}

func seekTargets(s *Stream) []int {
	if !s.LoopFlag {
		n := s.NumSamples
		return []int{0, 1, 27, 29, n / 3, n / 2, n - 1, n, n + 50}
	}
	ls, le := s.LoopStart, s.LoopEnd
	body := le - ls
	return []int{0, 1, ls - 1, ls, ls + 13, le - 1, le, le + body/2 + 5, 3*le + 7}
}

func TestSeekSimple(t *testing.T) {
	all := append(loopingBuilders(), plainBuilders()...)
	for _, b := range all {
		t.Run(b.name, func(t *testing.T) {
			build := func(t *testing.T) *Controller {
				return NewController(b.build(t), nil)
			}
			for _, k := range seekTargets(b.build(t)) {
				t.Run(fmt.Sprint(k), func(t *testing.T) {
					checkSeek(t, build, max(k, 0), 400)
				})
			}
		})
	}
}

func TestSeekConfig(t *testing.T) {
	configs := map[string]PlayConfig{
		"fade":        {LoopCount: 2, FadeTime: 0.01, FadeShape: FadeQuarterSine, PadBegin: 37},
		"ignore fade": {LoopCount: 2, IgnoreFade: true, PadEnd: 25},
		"trim":        {LoopCount: 1.5, FadeTime: 0.005, TrimBegin: 50, TrimEnd: 10},
	}

	all := append(loopingBuilders(), plainBuilders()...)
	for cname, pc := range configs {
		for _, b := range all {
			t.Run(cname+"/"+b.name, func(t *testing.T) {
				build := func(t *testing.T) *Controller {
					return NewController(b.build(t), &pc)
				}
				total := build(t).TotalSamples()
				targets := []int{0, 20, 37, 100, total / 3, total / 2, total - 50, total + 10}
				for _, k := range targets {
					t.Run(fmt.Sprint(k), func(t *testing.T) {
						checkSeek(t, build, max(k, 0), 300)
					})
				}
			})
		}
	}
}

func TestLoopInstalledAfterStart(t *testing.T) {
	samples := ramp(2000, 0)
	s := setup(t, pcmStream(t, 1, 8000, samples))
	renderStream(s, 1200)
	s.ForceLoop(true, 500, 1500)

	out := renderStream(s, 300+1000)
	// 1200..1500, then the loop body again
	if i := firstDiff(out[:300], samples[1200:1500]); i >= 0 {
		t.Fatalf("pre-loop value %d differs", i)
	}
	if i := firstDiff(out[300:], samples[500:1500]); i >= 0 {
		t.Fatalf("loop body value %d differs", i)
	}
}
