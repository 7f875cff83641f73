package meta

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

const (
	txtpMaxSize      = 0x10000
	txtpSilenceEntry = "?"
)

// txtpEntry is one line naming a stream and its commands. Groups reuse it
// for their own commands, without a name.
type txtpEntry struct {
	name     string
	subsong  int
	commands []txtpCommand

	// loop anchors: the enclosing segment group loops from the first
	// entry marked #a to the first marked #A (or its last entry)
	anchorStart bool
	anchorEnd   bool
}

type txtpCommand struct {
	op  string
	arg string
}

// txtp is a parsed composition.
type txtp struct {
	entries   []txtpEntry
	groups    []txtpGroup
	mode      string // segments, layers or mixed
	loopStart int    // 1-based segment, 0 when unset
	loopEnd   int
	loopMode  string
	commands  []txtpCommand

	// groupPos counts the items left after every group so far, for groups
	// placed relative to the last entries
	groupPos int
}

// initTXTP builds a segmented or layered stream from a text playlist of
// companion files.
func initTXTP(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "txtp"
	if sf.Ext() != "txtp" {
		return nil, notFormat(op)
	}
	if sf.Size() > txtpMaxSize {
		return nil, malformed(op, "%d bytes", sf.Size())
	}
	text, err := sf.Bytes(0, int(sf.Size()))
	if err != nil {
		return nil, vgmerr.Wrap(vgmerr.SourceIo, op, err)
	}
	t, err := parseTXTP(text)
	if err != nil {
		return nil, err
	}
	s, err := t.build(sf)
	if err != nil {
		return nil, err
	}
	sf.Close()
	return s, nil
}

func parseTXTP(text []byte) (*txtp, error) {
	const op = "txtp"
	t := &txtp{mode: "segments"}
	text = bytes.TrimPrefix(text, []byte("\xef\xbb\xbf"))
	sc := bufio.NewScanner(bytes.NewReader(text))
	line := 0
	for sc.Scan() {
		line++
		l := strings.TrimSpace(sc.Text())
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}

		if strings.ContainsAny(l[:1], "([{") {
			if err := t.parseBrackets(l); err != nil {
				return nil, vgmerr.Wrap(vgmerr.BadComposition, fmt.Sprintf("%s line %d", op, line), err)
			}
			continue
		}

		if key, value, ok := strings.Cut(l, "="); ok && !strings.Contains(key, "#") && !strings.Contains(key, ".") {
			if err := t.setKey(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
				return nil, vgmerr.Wrap(vgmerr.BadComposition, fmt.Sprintf("%s line %d", op, line), err)
			}
			continue
		}

		e, err := parseTXTPEntry(l)
		if err != nil {
			return nil, vgmerr.Wrap(vgmerr.BadComposition, fmt.Sprintf("%s line %d", op, line), err)
		}
		t.addEntry(e)
	}
	if err := sc.Err(); err != nil {
		return nil, vgmerr.Wrap(vgmerr.SourceIo, op, err)
	}
	if len(t.entries) > vgmstream.MaxSegments {
		return nil, vgmerr.New(vgmerr.BadComposition, op, "%d entries", len(t.entries))
	}
	return t, nil
}

func (t *txtp) setKey(key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("%s: bad segment %q", key, value)
		}
		return n, nil
	}
	var err error
	switch key {
	case "mode":
		switch value {
		case "segments", "layers", "mixed":
			t.mode = value
		default:
			return fmt.Errorf("unknown mode %q", value)
		}
	case "group":
		err = t.addGroupLine(value)
	case "loop_start_segment":
		t.loopStart, err = atoi()
	case "loop_end_segment":
		t.loopEnd, err = atoi()
	case "loop_mode":
		if value != "keep" && value != "auto" {
			return fmt.Errorf("unknown loop_mode %q", value)
		}
		t.loopMode = value
	case "commands":
		t.commands, err = parseTXTPCommands(value)
	default:
		slog.Debug("txtp: unknown key", "key", key)
	}
	return err
}

// parseTXTPEntry splits "name#cmd#cmd". A leading number command selects
// the subsong.
func parseTXTPEntry(l string) (txtpEntry, error) {
	name, rest, _ := strings.Cut(l, "#")
	e := txtpEntry{name: strings.TrimSpace(name)}
	if e.name == "" {
		return e, errors.New("entry without a name")
	}
	if rest == "" {
		return e, nil
	}
	err := e.addCommands("#" + rest)
	return e, err
}

// addCommands parses "#cmd#cmd" into e, pulling out the subsong and the
// loop anchors.
func (e *txtpEntry) addCommands(s string) error {
	cmds, err := parseTXTPCommands(s)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		switch c.op {
		case "s":
			n, err := strconv.Atoi(c.arg)
			if err != nil || n < 1 {
				return fmt.Errorf("bad subsong %q", c.arg)
			}
			e.subsong = n
		case "a":
			e.anchorStart = true
		case "A":
			e.anchorEnd = true
		default:
			e.commands = append(e.commands, c)
		}
	}
	return nil
}

func (t *txtp) addEntry(e txtpEntry) {
	t.entries = append(t.entries, e)
	t.groupPos++
}

func parseTXTPCommands(s string) ([]txtpCommand, error) {
	var cmds []txtpCommand
	for _, part := range strings.Split(s, "#")[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c := txtpCommand{op: part[:1], arg: strings.TrimSpace(part[1:])}
		switch {
		case part[0] >= '0' && part[0] <= '9':
			c = txtpCommand{op: "s", arg: part}
		case part == "@loop":
			c = txtpCommand{op: "a"}
		case part == "@loop-end":
			c = txtpCommand{op: "A"}
		case part[0] == '@':
			c = txtpCommand{op: "@", arg: strings.TrimPrefix(part[1:], "body-")}
		}
		if !strings.Contains("sieEIhtlfdFLpPrRb@aA", c.op) {
			return nil, fmt.Errorf("unknown command #%s", part)
		}
		cmds = append(cmds, c)
	}
	return cmds, nil
}

// txtpTime is a time value: samples, or seconds when sec is set.
type txtpTime struct {
	samples int
	seconds float64
	sec     bool
}

// parseTXTPTime accepts "123" (samples), "0x7B" (samples), "1.5" (seconds)
// and "1:02.5" (minutes and seconds).
func parseTXTPTime(v string) (txtpTime, error) {
	v = strings.TrimSpace(v)
	if h, ok := strings.CutPrefix(strings.ToLower(v), "0x"); ok {
		n, err := strconv.ParseInt(h, 16, 64)
		if err != nil {
			return txtpTime{}, fmt.Errorf("bad time %q", v)
		}
		return txtpTime{samples: int(n)}, nil
	}
	if m, sec, ok := strings.Cut(v, ":"); ok {
		mins, err1 := strconv.Atoi(m)
		secs, err2 := strconv.ParseFloat(sec, 64)
		if err1 != nil || err2 != nil || mins < 0 || secs < 0 {
			return txtpTime{}, fmt.Errorf("bad time %q", v)
		}
		return txtpTime{seconds: float64(mins)*60 + secs, sec: true}, nil
	}
	if strings.Contains(v, ".") {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs < 0 {
			return txtpTime{}, fmt.Errorf("bad time %q", v)
		}
		return txtpTime{seconds: secs, sec: true}, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return txtpTime{}, fmt.Errorf("bad time %q", v)
	}
	return txtpTime{samples: n}, nil
}

func (tt txtpTime) at(rate int) int {
	if tt.sec {
		return int(tt.seconds * float64(rate))
	}
	return tt.samples
}

// applyStream runs the commands that change the stream itself.
func applyStream(s *vgmstream.Stream, cmds []txtpCommand) error {
	for _, c := range cmds {
		switch c.op {
		case "i":
			s.ForceLoop(false, 0, 0)
		case "e":
			if !s.LoopFlag {
				s.ForceLoop(true, 0, s.NumSamples)
			}
		case "E":
			s.ForceLoop(true, 0, s.NumSamples)
		case "I":
			fields := strings.Fields(c.arg)
			if len(fields) == 0 || len(fields) > 2 {
				return fmt.Errorf("#I needs start [end], got %q", c.arg)
			}
			start, err := parseTXTPTime(fields[0])
			if err != nil {
				return err
			}
			end := s.NumSamples
			if len(fields) == 2 {
				tt, err := parseTXTPTime(fields[1])
				if err != nil {
					return err
				}
				end = tt.at(s.SampleRate)
			}
			s.ForceLoop(true, start.at(s.SampleRate), end)
		case "h":
			rate, err := strconv.Atoi(c.arg)
			if err != nil || rate <= 0 {
				return fmt.Errorf("bad sample rate %q", c.arg)
			}
			s.SampleRate = rate
		case "t":
			tt, err := parseTXTPTime(c.arg)
			if err != nil {
				return err
			}
			trimSamples(s, tt.at(s.SampleRate))
		}
	}
	return nil
}

// trimSamples cuts the stream to n samples, pulling the loop in with it.
func trimSamples(s *vgmstream.Stream, n int) {
	if n <= 0 || n >= s.NumSamples {
		return
	}
	s.NumSamples = n
	if !s.LoopFlag {
		return
	}
	if s.LoopStart >= n {
		s.ForceLoop(false, 0, 0)
		return
	}
	if s.LoopEnd > n {
		s.ForceLoop(true, s.LoopStart, n)
	}
}

// applyPlay collects the commands that drive playback. It returns nil when
// none is present.
func applyPlay(pc *vgmstream.PlayConfig, cmds []txtpCommand) (*vgmstream.PlayConfig, error) {
	for _, c := range cmds {
		if !strings.Contains("lfdFLpPrRb@", c.op) {
			continue
		}
		if pc == nil {
			pc = vgmstream.DefaultPlayConfig()
		}
		switch c.op {
		case "l", "f", "d":
			v, err := strconv.ParseFloat(c.arg, 64)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("#%s: bad value %q", c.op, c.arg)
			}
			switch c.op {
			case "l":
				pc.LoopCount = v
			case "f":
				pc.FadeTime = v
			default:
				pc.FadeDelay = v
			}
		case "F":
			pc.IgnoreFade = true
		case "L":
			pc.PlayForever = true
		case "p", "P", "r", "R", "b":
			tt, err := parseTXTPTime(c.arg)
			if err != nil {
				return nil, fmt.Errorf("#%s: %w", c.op, err)
			}
			samples, secs := timeFields(pc, c.op)
			if tt.sec {
				*secs, *samples = tt.seconds, 0
			} else {
				*samples, *secs = tt.samples, 0
			}
		case "@":
			m, err := vgmstream.ParseBodyMode(c.arg)
			if err != nil {
				return nil, err
			}
			pc.BodyMode = m
		}
	}
	return pc, nil
}

func timeFields(pc *vgmstream.PlayConfig, op string) (*int, *float64) {
	switch op {
	case "p":
		return &pc.PadBegin, &pc.PadBeginSec
	case "P":
		return &pc.PadEnd, &pc.PadEndSec
	case "r":
		return &pc.TrimBegin, &pc.TrimBeginSec
	case "R":
		return &pc.TrimEnd, &pc.TrimEndSec
	}
	return &pc.BodyTime, &pc.BodyTimeSec
}

// build opens every entry, applies the groups in order and composes what
// is left by mode. Entries that are "?" or whose file is missing become one
// second of silence shaped like the first entry that opened.
func (t *txtp) build(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "txtp"
	if len(t.entries) == 0 {
		return nil, vgmerr.New(vgmerr.BadComposition, op, "no entries")
	}

	items := make([]txtpItem, len(t.entries))
	closeAll := func() {
		for _, it := range items {
			if it.s != nil {
				it.s.Close()
			}
		}
	}

	var pc *vgmstream.PlayConfig
	var first *vgmstream.Stream
	for i, e := range t.entries {
		items[i].entry = e
		cmds := append(append([]txtpCommand(nil), t.commands...), e.commands...)
		var err error
		if pc, err = applyPlay(pc, cmds); err != nil {
			closeAll()
			return nil, vgmerr.Wrap(vgmerr.BadComposition, op+" "+e.name, err)
		}
		if e.name == txtpSilenceEntry {
			continue
		}
		if strings.EqualFold(e.name, sf.Name()) {
			closeAll()
			return nil, vgmerr.New(vgmerr.BadComposition, op, "%s includes itself", e.name)
		}

		s, err := openTXTPEntry(sf, e)
		if errors.Is(err, vgmerr.ErrMissingCompanion) {
			slog.Warn("txtp: missing entry, using silence", "entry", e.name, "error", err)
			continue
		}
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := applyStream(s, cmds); err != nil {
			s.Close()
			closeAll()
			return nil, vgmerr.Wrap(vgmerr.BadComposition, op+" "+e.name, err)
		}
		items[i].s = s
		if first == nil {
			first = s
		}
	}
	if first == nil {
		return nil, vgmerr.New(vgmerr.MissingCompanion, op, "no entry could be opened")
	}
	for i := range items {
		if items[i].s != nil {
			continue
		}
		silence, err := vgmstream.NewSilence(first.Channels, first.SampleRate, first.SampleRate)
		if err != nil {
			closeAll()
			return nil, err
		}
		items[i].s = silence
	}

	single := len(t.groups) == 0 && len(items) == 1
	var err error
	for _, g := range t.groups {
		if items, pc, err = t.applyGroup(items, g, pc); err != nil {
			closeAll()
			return nil, err
		}
	}
	switch t.mode {
	case "layers":
		if len(items) > 1 {
			items, err = t.layerItems(items, 0, len(items), nil)
		}
	case "segments":
		if len(items) > 1 {
			items, err = t.segmentItems(items, 0, len(items), nil)
		}
	}
	if err != nil {
		closeAll()
		return nil, err
	}
	if len(items) != 1 {
		closeAll()
		return nil, vgmerr.New(vgmerr.BadComposition, op, "%d streams left ungrouped", len(items))
	}

	s := items[0].s
	if single {
		// loop_start_segment = 1 on a lone entry loops it to its end
		if t.loopStart == 1 && t.loopEnd == 0 {
			s.ForceLoop(true, s.LoopStart, s.NumSamples)
		}
	} else {
		if s.Layout == vgmstream.LayoutSegmented || s.Layout == vgmstream.LayoutLayered {
			s.Meta = "TXTP composition"
		}
		s.Name = strings.TrimSuffix(sf.Name(), ".txtp")
	}
	s.Config = pc
	return s, nil
}

func openTXTPEntry(sf *streamfile.StreamFile, e txtpEntry) (*vgmstream.Stream, error) {
	child, err := sf.OpenSibling(e.name)
	if err != nil {
		return nil, err
	}
	s, err := OpenSubsong(child, e.subsong)
	if err != nil {
		child.Close()
		return nil, err
	}
	return s, nil
}

// segmented chains the streams that make up the whole composition. An
// explicit loop segment range wins; then "keep" reuses the first segment
// loop and "auto" loops the last segment.
func (t *txtp) segmented(streams []*vgmstream.Stream) (*vgmstream.Stream, error) {
	n := len(streams)
	if t.loopStart > 0 {
		end := n
		if t.loopEnd > 0 {
			end = min(t.loopEnd, n)
		}
		if t.loopStart > end {
			return nil, vgmerr.New(vgmerr.BadComposition, "txtp",
				"loop segments %d..%d of %d", t.loopStart, t.loopEnd, n)
		}
		return vgmstream.NewSegmented(streams, true, t.loopStart-1, end)
	}

	switch t.loopMode {
	case "auto":
		return vgmstream.NewSegmented(streams, true, n-1, n)
	case "keep":
		offset := 0
		for _, seg := range streams {
			if seg.LoopFlag {
				start, end := offset+seg.LoopStart, offset+seg.LoopEnd
				s, err := vgmstream.NewSegmented(streams, false, 0, 0)
				if err != nil {
					return nil, err
				}
				s.ForceLoop(true, start, end)
				return s, nil
			}
			offset += seg.NumSamples
		}
	}
	return vgmstream.NewSegmented(streams, false, 0, 0)
}
