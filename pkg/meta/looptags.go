package meta

import (
	"strconv"
	"strings"
)

// loopTags collects loop points from Vorbis style KEY=VALUE comments, as
// written by the usual looping tools.
type loopTags struct {
	start    int
	length   int
	end      int
	hasStart bool
	hasLen   bool
	hasEnd   bool
}

var (
	loopStartKeys = []string{"loop_start", "LOOP_START", "LOOPSTART", "LOOP_BEGIN", "LoopStart",
		"XIPH_CUE_LOOPSTART", "um3.stream.looppoint.start", "COMMENT=LOOPPOINT"}
	loopEndKeys  = []string{"LoopEnd", "LOOP_END", "LOOPEND", "XIPH_CUE_LOOPEND"}
	loopPairKeys = []string{"lp", "LOOPDEFS"}
)

func (l *loopTags) add(comment string) {
	eq := strings.LastIndexByte(comment, '=')
	if eq < 0 {
		return
	}
	key, value := comment[:eq], strings.TrimSpace(comment[eq+1:])
	atoi := func(s string) (int, bool) {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		return v, err == nil
	}

	switch {
	case contains(loopStartKeys, key):
		if v, ok := atoi(value); ok && v >= 0 {
			l.start, l.hasStart = v, true
		}
	case key == "LOOPLENGTH":
		if v, ok := atoi(value); ok {
			l.length, l.hasLen = v, true
		}
	case contains(loopEndKeys, key):
		if v, ok := atoi(value); ok {
			l.end, l.hasEnd = v, true
		}
	case contains(loopPairKeys, key):
		a, b, found := strings.Cut(value, ",")
		if !found {
			return
		}
		s, ok1 := atoi(a)
		e, ok2 := atoi(b)
		if ok1 && ok2 {
			l.start, l.end = s, e
			l.hasStart, l.hasEnd = true, true
		}
	}
}

// region returns the loop with an exclusive end. A start without a length
// or end loops to the end of the stream.
func (l *loopTags) region(numSamples int) (int, int, bool) {
	if !l.hasStart {
		return 0, 0, false
	}
	switch {
	case l.hasLen:
		return l.start, l.start + l.length, true
	case l.hasEnd:
		return l.start, l.end, true
	}
	return l.start, numSamples, true
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
