// Package meta holds the container parsers. Each parser checks a file's
// identity, reads its header and returns a set up vgmstream.Stream.
package meta

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

// Parser recognises one container format.
type Parser struct {
	Name string
	// Exts are the lowercase extensions the parser accepts. Empty accepts
	// any extension.
	Exts []string
	// Init returns an UnknownFormat error when sf is not this format.
	Init func(sf *streamfile.StreamFile) (*vgmstream.Stream, error)
}

func (p Parser) accepts(ext string) bool {
	return len(p.Exts) == 0 || slices.Contains(p.Exts, ext)
}

// parsers is tried in order. Formats with a strong magic come first. It is
// filled in init since TXTP opens its entries through Open.
var parsers []Parser

func init() {
	parsers = []Parser{
		{Name: "TXTP", Exts: []string{"txtp"}, Init: initTXTP},
		{Name: "GENH", Exts: []string{"genh"}, Init: initGENH},
		{Name: "HALPST", Exts: []string{"hps"}, Init: initHPS},
		{Name: "AST", Exts: []string{"ast"}, Init: initAST},
		{Name: "VAG", Exts: []string{"vag"}, Init: initVAG},
		{Name: "EA SCHl", Exts: []string{"asf", "str", "sng", "as4", "lasf", "mus", "", "eam", "exa"}, Init: initEASCHL},
		{Name: "Switch Opus", Exts: []string{"opus", "lopus", "nop"}, Init: initNXOpus},
		{Name: "CD-XA", Exts: []string{"xa", "str", "adp", "pxa", ""}, Init: initXA},
		{Name: "RIFF WAVE", Exts: []string{"wav", "lwav"}, Init: initRIFF},
		{Name: "Ogg Vorbis", Exts: []string{"ogg", "logg"}, Init: initOgg},
		{Name: "FLAC", Exts: []string{"flac", "fla"}, Init: initFLAC},
		{Name: "MPEG", Exts: []string{"mp3", "mp2", "lmp3"}, Init: initMP3},
	}
}

// Formats returns the registered parsers in the order Open tries them.
func Formats() []Parser {
	return slices.Clone(parsers)
}

// Open tries the parsers accepting sf's extension and returns the first
// stream one of them builds. A parser failing for a reason other than an
// unrecognised file stops the search. On success the stream owns sf and
// closing it closes the source.
func Open(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	ext := sf.Ext()
	for _, p := range parsers {
		if !p.accepts(ext) {
			continue
		}
		s, err := p.Init(sf)
		if err == nil {
			slog.Debug("meta: parsed", "file", sf.Name(), "format", p.Name)
			return s, nil
		}
		if !errors.Is(err, vgmerr.ErrUnknownFormat) {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
	}
	return nil, &vgmerr.Error{Kind: vgmerr.UnknownFormat, Op: "open " + sf.Name()}
}

// OpenFile opens path from disk and parses it. Companion files are looked up
// next to it.
func OpenFile(path string) (*vgmstream.Stream, error) {
	sf, err := streamfile.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := Open(sf)
	if err != nil {
		sf.Close()
		return nil, err
	}
	return s, nil
}

// OpenSubsong parses sf selecting the given subsong (1-based, 0 for the
// default) in containers that hold several streams.
func OpenSubsong(sf *streamfile.StreamFile, subsong int) (*vgmstream.Stream, error) {
	child := sf.Clone()
	child.StreamIndex = subsong
	s, err := Open(child)
	if err != nil {
		return nil, err
	}
	if subsong > max(s.NumStreams, 1) {
		s.Close()
		return nil, vgmerr.New(vgmerr.MalformedHeader, "open "+sf.Name(), "no subsong %d", subsong)
	}
	return s, nil
}

func notFormat(name string) error {
	return &vgmerr.Error{Kind: vgmerr.UnknownFormat, Op: name}
}

func malformed(name, format string, args ...any) error {
	return vgmerr.New(vgmerr.MalformedHeader, name, format, args...)
}

// finish opens the channel cursors of s at start and runs Setup. The stream
// is closed on failure.
func finish(s *vgmstream.Stream, sf *streamfile.StreamFile, start int64) (*vgmstream.Stream, error) {
	if err := s.Open(sf, start); err != nil {
		s.Close()
		return nil, err
	}
	return setup(s)
}

func setup(s *vgmstream.Stream) (*vgmstream.Stream, error) {
	if err := s.Setup(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
