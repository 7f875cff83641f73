// Package streamfile provides the random-access byte source used by container
// parsers and decoders: endian-aware reads at an offset, a small rolling
// cache, cheap clones and windows, and companion file lookup.
package streamfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/drgolem/vgmtools/pkg/vgmerr"

	"github.com/vazrupe/endibuf"
)

// DefaultBufferSize is the size of the rolling read buffer of a StreamFile.
const DefaultBufferSize = 0x8000

// Source is the host side of a byte source: random access plus a size.
// *bytes.Reader and *io.SectionReader satisfy it.
type Source interface {
	io.ReaderAt
	Size() int64
}

// Opener opens companion files referenced by a container.
type Opener interface {
	Open(name string) (Source, error)
}

// handle is shared by every clone and window of one opened source.
type handle struct {
	src  Source
	once sync.Once
	err  error
}

func (h *handle) close() error {
	h.once.Do(func() {
		if c, ok := h.src.(io.Closer); ok {
			h.err = c.Close()
		}
	})
	return h.err
}

// StreamFile is a seekable view over a Source with a single rolling buffer
// keyed by the last read offset. It is not safe for concurrent use; clone it
// to read from several goroutines or channels.
type StreamFile struct {
	h      *handle
	name   string
	opener Opener
	base   int64
	size   int64

	buf    []byte
	bufOff int64
	bufLen int

	// StreamIndex selects a subsong in multi-sound containers (1-based, 0 = default).
	StreamIndex int
}

// New wraps src. The opener may be nil, in which case OpenSibling always
// reports a missing companion.
func New(src Source, name string, opener Opener) *StreamFile {
	return &StreamFile{
		h:      &handle{src: src},
		name:   name,
		opener: opener,
		size:   src.Size(),
		buf:    make([]byte, DefaultBufferSize),
		bufOff: -1,
	}
}

// FromBytes returns a StreamFile over an in-memory buffer.
func FromBytes(name string, data []byte) *StreamFile {
	return New(bytes.NewReader(data), name, nil)
}

// Open opens a local file. Siblings are looked up in the same directory.
func Open(path string) (*StreamFile, error) {
	src, err := openFile(path)
	if err != nil {
		return nil, err
	}
	return New(src, filepath.Base(path), DirOpener(filepath.Dir(path))), nil
}

// Name returns the file name the stream was opened with.
func (sf *StreamFile) Name() string {
	return sf.name
}

// Ext returns the lower-case extension of the name, without the dot.
func (sf *StreamFile) Ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(sf.name)), ".")
}

// Size returns the size of the (windowed) source.
func (sf *StreamFile) Size() int64 {
	return sf.size
}

// Close releases the underlying source. Clones and windows share it, so
// closing any of them closes all.
func (sf *StreamFile) Close() error {
	return sf.h.close()
}

// Clone returns a StreamFile over the same source with its own buffer.
func (sf *StreamFile) Clone() *StreamFile {
	c := *sf
	c.buf = make([]byte, len(sf.buf))
	c.bufOff = -1
	c.bufLen = 0
	return &c
}

// Window returns a clone restricted to [off, off+size) of this stream.
func (sf *StreamFile) Window(off, size int64) (*StreamFile, error) {
	if off < 0 || size < 0 || off+size > sf.size {
		return nil, vgmerr.New(vgmerr.SourceExhausted, "window",
			"range 0x%x+0x%x outside size 0x%x", off, size, sf.size)
	}
	c := sf.Clone()
	c.base = sf.base + off
	c.size = size
	return c, nil
}

// OpenSibling opens a companion file through the host opener.
func (sf *StreamFile) OpenSibling(name string) (*StreamFile, error) {
	if sf.opener == nil {
		return nil, vgmerr.New(vgmerr.MissingCompanion, "open sibling", "%s: no opener", name)
	}
	src, err := sf.opener.Open(name)
	if err != nil {
		if vgmerr.KindOf(err) == vgmerr.KindUnknown {
			err = vgmerr.Wrap(vgmerr.MissingCompanion, "open sibling "+name, err)
		}
		return nil, err
	}
	return New(src, filepath.Base(name), sf.opener), nil
}

// ReadAt reads len(p) bytes at off. Reads at or past the end return
// vgmerr.ErrSourceExhausted with the number of bytes that were available.
func (sf *StreamFile) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 || off >= sf.size {
		return 0, exhausted(off)
	}

	want := len(p)
	avail := sf.size - off
	if int64(want) > avail {
		p = p[:avail]
	}

	var n int
	if sf.bufOff >= 0 && off >= sf.bufOff && off+int64(len(p)) <= sf.bufOff+int64(sf.bufLen) {
		n = copy(p, sf.buf[off-sf.bufOff:])
	} else if len(p) >= len(sf.buf) {
		var err error
		n, err = sf.readSource(p, off)
		if err != nil {
			return n, err
		}
	} else {
		if err := sf.refill(off); err != nil {
			return 0, err
		}
		n = copy(p, sf.buf[:sf.bufLen])
	}

	if n < want {
		return n, exhausted(off + int64(n))
	}
	return n, nil
}

func (sf *StreamFile) refill(off int64) error {
	size := int64(len(sf.buf))
	if rem := sf.size - off; rem < size {
		size = rem
	}
	n, err := sf.readSource(sf.buf[:size], off)
	sf.bufOff = off
	sf.bufLen = n
	return err
}

func (sf *StreamFile) readSource(p []byte, off int64) (int, error) {
	n, err := sf.h.src.ReadAt(p, sf.base+off)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, vgmerr.Wrap(vgmerr.SourceIo, fmt.Sprintf("read 0x%x", off), err)
	}
	return n, nil
}

func exhausted(off int64) error {
	return &vgmerr.Error{Kind: vgmerr.SourceExhausted, Op: fmt.Sprintf("read 0x%x", off)}
}

// Fill reads as much as possible into p and zero fills the rest. Decoders
// use it so that truncated frames decode as silence.
func (sf *StreamFile) Fill(p []byte, off int64) int {
	n, _ := sf.ReadAt(p, off)
	clear(p[n:])
	return n
}

// Bytes returns n bytes at off.
func (sf *StreamFile) Bytes(off int64, n int) ([]byte, error) {
	p := make([]byte, n)
	if _, err := sf.ReadAt(p, off); err != nil {
		return nil, err
	}
	return p, nil
}

// MatchID reports whether the bytes at off equal id.
func (sf *StreamFile) MatchID(off int64, id string) bool {
	var b [16]byte
	if len(id) > len(b) {
		return false
	}
	if _, err := sf.ReadAt(b[:len(id)], off); err != nil {
		return false
	}
	return string(b[:len(id)]) == id
}

// SectionReader returns an io.ReadSeeker over [off, off+n) that bypasses the
// cache, for library decoders that stream on their own.
func (sf *StreamFile) SectionReader(off, n int64) *io.SectionReader {
	if off < 0 {
		off = 0
	}
	if off > sf.size {
		off = sf.size
	}
	if n < 0 || off+n > sf.size {
		n = sf.size - off
	}
	return io.NewSectionReader(sf.h.src, sf.base+off, n)
}

// HeaderReader returns a sequential reader starting at off in the given
// byte order, for container header parsing.
func (sf *StreamFile) HeaderReader(off int64, order binary.ByteOrder) *endibuf.Reader {
	r := endibuf.NewReader(sf.SectionReader(off, -1))
	r.Endian = order
	return r
}

// ReadHeader decodes the fixed-size struct v from off in the given byte
// order. Every field must be a sized integer, a byte array or an array of
// sized integers; endibuf's ReadData only covers single values.
func (sf *StreamFile) ReadHeader(off int64, order binary.ByteOrder, v any) error {
	r := sf.HeaderReader(off, order)
	if err := binary.Read(r, r.Endian, v); err != nil {
		return fmt.Errorf("header at 0x%x: %w", off, err)
	}
	return nil
}

// DirOpener opens siblings relative to a directory.
type DirOpener string

// Open implements Opener.
func (d DirOpener) Open(name string) (Source, error) {
	path := name
	if !filepath.IsAbs(name) {
		path = filepath.Join(string(d), name)
	}
	return openFile(path)
}

// MemOpener serves siblings from memory, keyed by name.
type MemOpener map[string][]byte

// Open implements Opener.
func (m MemOpener) Open(name string) (Source, error) {
	data, ok := m[name]
	if !ok {
		return nil, vgmerr.New(vgmerr.MissingCompanion, "open", "%s not found", name)
	}
	return bytes.NewReader(data), nil
}

// NewMem returns a StreamFile over the named entry of a MemOpener, with the
// opener set for sibling lookups.
func (m MemOpener) NewMem(name string) (*StreamFile, error) {
	src, err := m.Open(name)
	if err != nil {
		return nil, err
	}
	return New(src, name, m), nil
}

type fileSource struct {
	f    *os.File
	size int64
}

func openFile(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, vgmerr.Wrap(vgmerr.MissingCompanion, "open", err)
		}
		return nil, vgmerr.Wrap(vgmerr.SourceIo, "open", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, vgmerr.Wrap(vgmerr.SourceIo, "stat", err)
	}
	return &fileSource{f: f, size: st.Size()}, nil
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *fileSource) Size() int64 {
	return s.size
}

func (s *fileSource) Close() error {
	return s.f.Close()
}
