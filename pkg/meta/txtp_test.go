package meta

import (
	"errors"
	"testing"

	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

var (
	txtpA = ramp(300, 0)
	txtpB = ramp(200, 9000)
	txtpC = ramp(100, 20000)
)

func openTXTP(t *testing.T, text string) (*vgmstream.Stream, error) {
	t.Helper()
	files := streamfile.MemOpener{
		"a.genh":    pcmGENH(1, 8000, -1, txtpA),
		"b.genh":    pcmGENH(1, 8000, -1, txtpB),
		"c.genh":    pcmGENH(1, 8000, -1, txtpC),
		"loop.genh": pcmGENH(1, 8000, 50, txtpB),
		"song.txtp": []byte(text),
	}
	sf, err := files.NewMem("song.txtp")
	if err != nil {
		t.Fatal(err)
	}
	s, err := Open(sf)
	if err == nil {
		t.Cleanup(func() { s.Close() })
	}
	return s, err
}

func mustTXTP(t *testing.T, text string) *vgmstream.Stream {
	t.Helper()
	s, err := openTXTP(t, text)
	if err != nil {
		t.Fatalf("open txtp: %v", err)
	}
	return s
}

func TestTXTPSegments(t *testing.T) {
	s := mustTXTP(t, "# intro then body\na.genh\nb.genh\n")
	if s.Layout != vgmstream.LayoutSegmented {
		t.Fatalf("Layout = %v", s.Layout)
	}
	if s.NumSamples != 500 || s.LoopFlag {
		t.Errorf("NumSamples = %d loop %v", s.NumSamples, s.LoopFlag)
	}
	want := append(append([]int16(nil), txtpA...), txtpB...)
	if got := render(s, 500); !equal16(got, want) {
		t.Error("segments not played back to back")
	}
	if s.Config != nil {
		t.Error("Config set without play commands")
	}
}

func TestTXTPSegmentLoops(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantLoop  bool
		wantStart int
		wantEnd   int
	}{
		{"loop start segment", "a.genh\nb.genh\nloop_start_segment = 2\n", true, 300, 500},
		{"explicit range", "a.genh\nb.genh\nb.genh\nloop_start_segment = 1\nloop_end_segment = 2\n", true, 0, 500},
		{"auto", "a.genh\nb.genh\nloop_mode = auto\n", true, 300, 500},
		{"keep", "a.genh\nloop.genh\nloop_mode = keep\n", true, 350, 500},
		{"keep without loops", "a.genh\nb.genh\nloop_mode = keep\n", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustTXTP(t, tt.text)
			if s.LoopFlag != tt.wantLoop {
				t.Fatalf("LoopFlag = %v, want %v", s.LoopFlag, tt.wantLoop)
			}
			if s.LoopFlag && (s.LoopStart != tt.wantStart || s.LoopEnd != tt.wantEnd) {
				t.Errorf("loop = %d..%d, want %d..%d", s.LoopStart, s.LoopEnd, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestTXTPLayers(t *testing.T) {
	s := mustTXTP(t, "mode = layers\na.genh\nb.genh\n")
	if s.Layout != vgmstream.LayoutLayered || s.Channels != 2 {
		t.Fatalf("layout %v channels %d", s.Layout, s.Channels)
	}
	if s.NumSamples != 300 {
		t.Errorf("NumSamples = %d, want 300", s.NumSamples)
	}
	got := render(s, 200)
	for i := 0; i < 200; i++ {
		if got[i*2] != txtpA[i] || got[i*2+1] != txtpB[i] {
			t.Fatalf("frame %d = %d,%d", i, got[i*2], got[i*2+1])
		}
	}
}

func TestTXTPGroups(t *testing.T) {
	ab := append(append([]int16(nil), txtpA...), txtpB...)
	bc := append(append([]int16(nil), txtpB...), txtpC...)

	tests := []struct {
		name     string
		text     string
		layout   vgmstream.Layout
		channels [][]int16 // expected output per channel
	}{
		{"segment group under layers", "a.genh\nb.genh\nc.genh\ngroup = 2S2\nmode = layers\n",
			vgmstream.LayoutLayered, [][]int16{txtpA, bc}},
		{"auto positions", "b.genh\nc.genh\ngroup = -S2\na.genh\ngroup = -L2\n",
			vgmstream.LayoutLayered, [][]int16{bc, txtpA}},
		{"repeat", "a.genh\nb.genh\na.genh\nb.genh\ngroup = 1S2R\nmode = layers\n",
			vgmstream.LayoutLayered, [][]int16{ab, ab}},
		{"mixed", "mode = mixed\na.genh\na.genh\ngroup = L\n",
			vgmstream.LayoutLayered, [][]int16{txtpA, txtpA}},
		{"random pick", "a.genh\nb.genh\ngroup = 1R2>2\n",
			vgmstream.LayoutFlat, [][]int16{txtpB}},
		{"random without pick", "a.genh\nb.genh\ngroup = 1R2\n",
			vgmstream.LayoutSegmented, [][]int16{ab}},
		{"select all", "a.genh\nb.genh\ngroup = S2 >-\n",
			vgmstream.LayoutSegmented, [][]int16{ab}},
		{"bracket segments", "(a.genh)(b.genh)\n",
			vgmstream.LayoutSegmented, [][]int16{ab}},
		{"bracket layers", "[a.genh][(b.genh)(c.genh)]\n",
			vgmstream.LayoutLayered, [][]int16{txtpA, bc}},
		{"bracket nesting", "[(b.genh)(c.genh)][a.genh]\n",
			vgmstream.LayoutLayered, [][]int16{bc, txtpA}},
		{"bracket pick", "{a.genh, b.genh}>1\n",
			vgmstream.LayoutFlat, [][]int16{txtpA}},
		{"bracket select all", "{a.genh,b.genh}\n",
			vgmstream.LayoutSegmented, [][]int16{ab}},
		{"bracket lines chain", "(a.genh)\n{c.genh,b.genh}>2\n",
			vgmstream.LayoutSegmented, [][]int16{ab}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustTXTP(t, tt.text)
			if s.Layout != tt.layout || s.Channels != len(tt.channels) {
				t.Fatalf("layout %v channels %d, want %v %d", s.Layout, s.Channels, tt.layout, len(tt.channels))
			}
			n := len(tt.channels[0])
			if s.NumSamples != n {
				t.Fatalf("NumSamples = %d, want %d", s.NumSamples, n)
			}
			got := render(s, n)
			for ch, want := range tt.channels {
				for i := range want {
					if v := got[i*s.Channels+ch]; v != want[i] {
						t.Fatalf("channel %d sample %d = %d, want %d", ch, i, v, want[i])
					}
				}
			}
		})
	}
}

func TestTXTPRandomGroup(t *testing.T) {
	s := mustTXTP(t, "a.genh\nb.genh\ngroup = 1R2>0\n")
	if s.NumSamples != 300 && s.NumSamples != 200 {
		t.Errorf("NumSamples = %d, want one of the entries", s.NumSamples)
	}
	if s.Name != "song" {
		t.Errorf("Name = %q", s.Name)
	}
}

func TestTXTPLoopAnchors(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantStart int
		wantEnd   int
		wantLen   int
	}{
		{"start anchor", "a.genh\nb.genh#a\n", 300, 500, 500},
		{"start and end", "a.genh#a\nb.genh#A\nc.genh\n", 0, 500, 600},
		{"named anchors", "a.genh\nb.genh #@loop\nc.genh #@loop-end\n", 300, 600, 600},
		{"inside a group", "a.genh\nb.genh#a\ngroup = -S2\na.genh\nb.genh\ngroup = -S2\nmode = layers\n", 300, 500, 500},
		{"group anchor", "a.genh\nb.genh\ngroup = -S2 #a\n", 0, 500, 500},
		{"bracket anchor", "(a.genh)(b.genh#a)\n", 300, 500, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustTXTP(t, tt.text)
			if !s.LoopFlag {
				t.Fatal("LoopFlag = false")
			}
			if s.LoopStart != tt.wantStart || s.LoopEnd != tt.wantEnd || s.NumSamples != tt.wantLen {
				t.Errorf("loop = %d..%d of %d, want %d..%d of %d",
					s.LoopStart, s.LoopEnd, s.NumSamples, tt.wantStart, tt.wantEnd, tt.wantLen)
			}
		})
	}
}

func TestTXTPSilenceEntries(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"placeholder", "a.genh\n?\n"},
		{"missing file", "a.genh\nmissing.genh\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustTXTP(t, tt.text)
			if s.NumSamples != 300+8000 {
				t.Fatalf("NumSamples = %d, want %d", s.NumSamples, 300+8000)
			}
			got := render(s, 400)
			for i := 300; i < 400; i++ {
				if got[i] != 0 {
					t.Fatalf("sample %d = %d, want silence", i, got[i])
				}
			}
		})
	}
}

func TestTXTPSingleEntry(t *testing.T) {
	s := mustTXTP(t, "loop.genh#l 3.0#f 5#d 1.5#p 0.5#R 100\n")
	if s.Meta != "GENH generic header" {
		t.Errorf("single entry wrapped: Meta = %q", s.Meta)
	}
	pc := s.Config
	if pc == nil {
		t.Fatal("no play config")
	}
	if pc.LoopCount != 3 || pc.FadeTime != 5 || pc.FadeDelay != 1.5 {
		t.Errorf("loops %v fade %v delay %v", pc.LoopCount, pc.FadeTime, pc.FadeDelay)
	}
	if pc.PadBeginSec != 0.5 || pc.TrimEnd != 100 {
		t.Errorf("pad %v trim end %d", pc.PadBeginSec, pc.TrimEnd)
	}
}

func TestTXTPStreamCommands(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantLoop  bool
		wantStart int
		wantEnd   int
		wantLen   int
		wantRate  int
	}{
		{"ignore loop", "loop.genh#i", false, 0, 0, 200, 8000},
		{"force loop", "b.genh#e", true, 0, 200, 200, 8000},
		{"force keeps loop", "loop.genh#e", true, 50, 200, 200, 8000},
		{"really force", "loop.genh#E", true, 0, 200, 200, 8000},
		{"install loop", "b.genh#I 20 120", true, 20, 120, 200, 8000},
		{"install loop seconds", "b.genh#I 0.0025", true, 20, 200, 200, 8000},
		{"trim", "loop.genh#t 150", true, 50, 150, 150, 8000},
		{"rate", "b.genh#h 16000", false, 0, 0, 200, 16000},
		{"global commands", "commands = #E\nb.genh", true, 0, 200, 200, 8000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustTXTP(t, tt.text)
			if s.LoopFlag != tt.wantLoop {
				t.Fatalf("LoopFlag = %v, want %v", s.LoopFlag, tt.wantLoop)
			}
			if s.LoopFlag && (s.LoopStart != tt.wantStart || s.LoopEnd != tt.wantEnd) {
				t.Errorf("loop = %d..%d, want %d..%d", s.LoopStart, s.LoopEnd, tt.wantStart, tt.wantEnd)
			}
			if s.NumSamples != tt.wantLen || s.SampleRate != tt.wantRate {
				t.Errorf("%d samples at %d Hz", s.NumSamples, s.SampleRate)
			}
		})
	}
}

func TestTXTPErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"empty", "# nothing\n", vgmerr.ErrBadComposition},
		{"only missing", "missing.genh\n?\n", vgmerr.ErrMissingCompanion},
		{"self include", "song.txtp\n", vgmerr.ErrBadComposition},
		{"unknown command", "a.genh#z\n", vgmerr.ErrBadComposition},
		{"bad mode", "mode = shuffle\na.genh\n", vgmerr.ErrBadComposition},
		{"bad loop range", "a.genh\nb.genh\nloop_start_segment = 2\nloop_end_segment = 1\n", vgmerr.ErrBadComposition},
		{"missing subsong", "a.genh#2\n", vgmerr.ErrMalformedHeader},
		{"unknown group type", "a.genh\ngroup = 1X1\n", vgmerr.ErrBadComposition},
		{"group pick out of range", "a.genh\nb.genh\ngroup = 1R2>5\n", vgmerr.ErrBadComposition},
		{"bad group selection", "a.genh\ngroup = R1>x\n", vgmerr.ErrBadComposition},
		{"mixed left ungrouped", "mode = mixed\na.genh\nb.genh\n", vgmerr.ErrBadComposition},
		{"unclosed bracket", "(a.genh\n", vgmerr.ErrBadComposition},
		{"text after brackets", "(a.genh)b.genh\n", vgmerr.ErrBadComposition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := openTXTP(t, tt.text)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseTXTPTime(t *testing.T) {
	tests := []struct {
		in      string
		want    int // at 1000 Hz
		wantErr bool
	}{
		{"1500", 1500, false},
		{"0x20", 32, false},
		{"2.5", 2500, false},
		{"1:02.5", 62500, false},
		{"-1", 0, true},
		{"1:xx", 0, true},
		{"0xZZ", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tm, err := parseTXTPTime(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tm.at(1000) != tt.want {
				t.Errorf("at(1000) = %d, want %d", tm.at(1000), tt.want)
			}
		})
	}
}
