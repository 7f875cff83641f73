package meta

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

const (
	groupSegment = 'S'
	groupLayer   = 'L'
	groupRandom  = 'R'
)

// txtpGroup folds count items starting at position into one segmented,
// layered or selected stream.
type txtpGroup struct {
	position int // 0-based; out of range means the first item
	kind     byte
	count    int // 0 takes every item from position on
	repeat   bool

	// random groups keep one item: pick (0-based), a random one when pick
	// is negative, or all of them as segments with selectAll
	pick      int
	selectAll bool

	// commands and anchors applied to the group's result
	entry txtpEntry
}

// txtpItem is one stream in the working list, with the settings of the
// entry or group it came from.
type txtpItem struct {
	s     *vgmstream.Stream
	entry txtpEntry
}

// addGroupLine parses "[-][position]type[count][R] [>N|>-] [#commands]".
// A leading "-" places the group over the last count items.
func (t *txtp) addGroupLine(v string) error {
	spec, cmds, hasCmds := strings.Cut(v, "#")
	g := txtpGroup{position: -1}
	rest := strings.TrimSpace(spec)

	auto := false
	if r, ok := strings.CutPrefix(rest, "-"); ok {
		auto = true
		rest = strings.TrimSpace(r)
	}
	if n, r, ok := leadingInt(rest); ok {
		g.position = n - 1
		rest = r
	}
	if rest == "" {
		return errors.New("group without a type")
	}
	g.kind = strings.ToUpper(rest[:1])[0]
	if g.kind != groupSegment && g.kind != groupLayer && g.kind != groupRandom {
		return fmt.Errorf("unknown group type %q", rest[:1])
	}
	rest = strings.TrimSpace(rest[1:])
	if n, r, ok := leadingInt(rest); ok {
		g.count = n
		rest = r
	}
	if r, ok := strings.CutPrefix(rest, "R"); ok {
		g.repeat = true
		auto = false
		rest = strings.TrimSpace(r)
	}

	if r, ok := strings.CutPrefix(rest, ">"); ok {
		// a selection turns any group into a random one
		g.kind = groupRandom
		r = strings.TrimSpace(r)
		if r2, ok := strings.CutPrefix(r, "-"); ok {
			g.selectAll = true
			rest = strings.TrimSpace(r2)
		} else if n, r2, ok := leadingInt(r); ok {
			g.pick = n - 1
			rest = r2
		} else {
			return fmt.Errorf("bad group selection %q", v)
		}
	} else if g.kind == groupRandom {
		g.selectAll = true
	}
	if rest != "" {
		return fmt.Errorf("trailing %q in group", rest)
	}
	if hasCmds {
		if err := g.entry.addCommands("#" + cmds); err != nil {
			return err
		}
	}
	t.addGroup(g, auto)
	return nil
}

func (t *txtp) addGroup(g txtpGroup, auto bool) {
	t.groupPos += 1 - g.count
	if auto {
		g.position = t.groupPos - 1
	}
	t.groups = append(t.groups, g)
}

func leadingInt(s string) (int, string, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, s, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, s, false
	}
	return n, strings.TrimLeft(s[end:], " \t"), true
}

// applyGroup folds the items g covers, then runs the group's commands on
// the result.
func (t *txtp) applyGroup(items []txtpItem, g txtpGroup, pc *vgmstream.PlayConfig) ([]txtpItem, *vgmstream.PlayConfig, error) {
	const op = "txtp group"
	if g.position < 0 || g.position >= len(items) {
		g.position = 0
	}
	if g.count <= 0 {
		g.count = len(items) - g.position
	}
	groups := 1
	if g.repeat {
		// trailing items that do not fill a group stay as they are
		groups = (len(items) - g.position) / g.count
	}

	var err error
	for pos := g.position; pos < g.position+groups; pos++ {
		if pos+g.count > len(items) {
			slog.Debug("txtp: group out of range, ignored",
				"position", pos+1, "count", g.count, "items", len(items))
			continue
		}
		switch g.kind {
		case groupLayer:
			items, err = t.layerItems(items, pos, g.count, &g)
		case groupSegment:
			items, err = t.segmentItems(items, pos, g.count, &g)
		case groupRandom:
			items, err = t.selectItems(items, pos, g.count, &g)
		}
		if err != nil {
			return items, pc, err
		}
	}

	s := items[g.position].s
	if err := applyStream(s, g.entry.commands); err != nil {
		return items, pc, vgmerr.Wrap(vgmerr.BadComposition, op, err)
	}
	if g.entry.anchorStart {
		s.ForceLoop(true, 0, s.NumSamples)
	}
	if pc, err = applyPlay(pc, g.entry.commands); err != nil {
		return items, pc, vgmerr.Wrap(vgmerr.BadComposition, op, err)
	}
	items[g.position].entry = g.entry
	return items, pc, nil
}

// segmentItems chains items[pos:pos+count] into one item. Loop anchors
// inside the range set the loop; otherwise the composition loop keys apply
// when the range is the whole list.
func (t *txtp) segmentItems(items []txtpItem, pos, count int, g *txtpGroup) ([]txtpItem, error) {
	if g == nil && count == 1 {
		return items, nil
	}
	part := items[pos : pos+count]
	segs := make([]*vgmstream.Stream, count)
	for i, it := range part {
		segs[i] = it.s
	}

	var s *vgmstream.Stream
	var err error
	if start, end, ok := loopAnchors(part); ok {
		s, err = vgmstream.NewSegmented(segs, true, start, end)
	} else if pos == 0 && count == len(items) {
		s, err = t.segmented(segs)
	} else {
		s, err = vgmstream.NewSegmented(segs, false, 0, 0)
	}
	if err != nil {
		return items, err
	}
	s.Meta = "TXTP composition"
	return slices.Replace(items, pos, pos+count, txtpItem{s: s}), nil
}

// layerItems mixes items[pos:pos+count] into one item. A layer group that
// makes up the whole list loops with loop_mode = auto.
func (t *txtp) layerItems(items []txtpItem, pos, count int, g *txtpGroup) ([]txtpItem, error) {
	if g == nil && count == 1 {
		return items, nil
	}
	whole := pos == 0 && count == len(items)
	layers := make([]*vgmstream.Stream, count)
	for i, it := range items[pos : pos+count] {
		layers[i] = it.s
	}
	s, err := vgmstream.NewLayered(layers, false)
	if err != nil {
		return items, err
	}
	s.Meta = "TXTP composition"
	if g != nil && whole && t.loopMode == "auto" {
		s.ForceLoop(true, 0, s.NumSamples)
	}
	return slices.Replace(items, pos, pos+count, txtpItem{s: s}), nil
}

// selectItems keeps one of items[pos:pos+count] and closes the rest, or
// chains them all when the group selects everything.
func (t *txtp) selectItems(items []txtpItem, pos, count int, g *txtpGroup) ([]txtpItem, error) {
	if g.selectAll {
		return t.segmentItems(items, pos, count, g)
	}
	pick := g.pick
	if pick < 0 {
		pick = rand.IntN(count)
	}
	if pick >= count {
		return items, vgmerr.New(vgmerr.BadComposition, "txtp group", "selects %d of %d", pick+1, count)
	}
	kept := items[pos+pick]
	for i, it := range items[pos : pos+count] {
		if i != pick {
			it.s.Close()
		}
	}
	return slices.Replace(items, pos, pos+count, kept), nil
}

// loopAnchors finds the first #a and #A items as a segment range
// [start, end). Without #A the loop runs to the last item.
func loopAnchors(items []txtpItem) (start, end int, ok bool) {
	start, end = -1, len(items)
	endSet := false
	for i, it := range items {
		if it.entry.anchorStart && start < 0 {
			start = i
		}
		if it.entry.anchorEnd && !endSet {
			end, endSet = i+1, true
		}
	}
	if start < 0 {
		return 0, 0, false
	}
	return start, end, true
}

// bracketParser reads one line of nested groups: "(A)(B)" chains, "[A][B]"
// layers and "{A,B}>N" picks one of A and B. Each group becomes its
// entries followed by a group placed over them.
type bracketParser struct {
	t *txtp
	s string
	i int
}

const bracketDelims = "()[]{},"

func (t *txtp) parseBrackets(l string) error {
	p := &bracketParser{t: t, s: l}
	p.skipSpace()
	for p.i < len(p.s) {
		if !strings.ContainsRune("([{", rune(p.s[p.i])) {
			return fmt.Errorf("unexpected %q at column %d", p.s[p.i], p.i+1)
		}
		if err := p.group(); err != nil {
			return err
		}
	}
	return nil
}

func (p *bracketParser) peek() byte {
	if p.i < len(p.s) {
		return p.s[p.i]
	}
	return 0
}

func (p *bracketParser) skipSpace() {
	for p.i < len(p.s) && (p.s[p.i] == ' ' || p.s[p.i] == '\t') {
		p.i++
	}
}

// node reads a nested group or one entry.
func (p *bracketParser) node() error {
	if c := p.peek(); c == '(' || c == '[' || c == '{' {
		return p.group()
	}
	start := p.i
	for p.i < len(p.s) && !strings.ContainsRune(bracketDelims, rune(p.s[p.i])) {
		p.i++
	}
	e, err := parseTXTPEntry(strings.TrimSpace(p.s[start:p.i]))
	if err != nil {
		return fmt.Errorf("column %d: %w", start+1, err)
	}
	p.t.addEntry(e)
	return nil
}

// group reads a run of same-kind brackets, or a single brace list, with
// its selection and commands.
func (p *bracketParser) group() error {
	open := p.peek()
	var closer byte
	g := txtpGroup{}
	switch open {
	case '(':
		closer, g.kind = ')', groupSegment
	case '[':
		closer, g.kind = ']', groupLayer
	default:
		closer, g.kind = '}', groupRandom
	}

	for p.peek() == open {
		p.i++
		p.skipSpace()
		for {
			if err := p.node(); err != nil {
				return err
			}
			g.count++
			p.skipSpace()
			if open != '{' || p.peek() != ',' {
				break
			}
			p.i++
			p.skipSpace()
		}
		if p.peek() != closer {
			return fmt.Errorf("missing %q at column %d", closer, p.i+1)
		}
		p.i++
		p.skipSpace()
		if open == '{' {
			break
		}
	}

	if open == '{' {
		g.selectAll = true
		if p.peek() == '>' {
			p.i++
			p.skipSpace()
			if p.peek() == '-' {
				p.i++
			} else {
				n, rest, ok := leadingInt(p.s[p.i:])
				if !ok {
					return fmt.Errorf("bad selection at column %d", p.i+1)
				}
				p.i = len(p.s) - len(rest)
				g.selectAll = false
				g.pick = n - 1
			}
			p.skipSpace()
		}
	}
	if p.peek() == '#' {
		start := p.i
		for p.i < len(p.s) && !strings.ContainsRune(bracketDelims, rune(p.s[p.i])) {
			p.i++
		}
		if err := g.entry.addCommands(p.s[start:p.i]); err != nil {
			return err
		}
	}

	// a lone entry in parentheses or brackets needs no wrapper
	if g.count == 1 && g.kind != groupRandom && len(g.entry.commands) == 0 && !g.entry.anchorStart {
		return nil
	}
	p.t.addGroup(g, true)
	return nil
}
