// Package vgmerr defines the error kinds reported at the public boundary of
// the stream engine and its container parsers.
package vgmerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

const (
	KindUnknown Kind = iota
	SourceIo
	SourceExhausted
	UnknownFormat
	MalformedHeader
	UnsupportedCodec
	MissingCompanion
	BadComposition
	DecoderFault
)

var kindNames = map[Kind]string{
	KindUnknown:      "unknown",
	SourceIo:         "source i/o",
	SourceExhausted:  "source exhausted",
	UnknownFormat:    "unknown format",
	MalformedHeader:  "malformed header",
	UnsupportedCodec: "unsupported codec",
	MissingCompanion: "missing companion",
	BadComposition:   "bad composition",
	DecoderFault:     "decoder fault",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error carries a Kind, the operation that failed and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return e.Op + ": " + e.Kind.String()
	case e.Op == "":
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind, so that
// errors.Is(err, vgmerr.ErrMalformedHeader) works on any wrapped Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrSourceIo         = &Error{Kind: SourceIo}
	ErrSourceExhausted  = &Error{Kind: SourceExhausted}
	ErrUnknownFormat    = &Error{Kind: UnknownFormat}
	ErrMalformedHeader  = &Error{Kind: MalformedHeader}
	ErrUnsupportedCodec = &Error{Kind: UnsupportedCodec}
	ErrMissingCompanion = &Error{Kind: MissingCompanion}
	ErrBadComposition   = &Error{Kind: BadComposition}
	ErrDecoderFault     = &Error{Kind: DecoderFault}
)

// New returns an Error of the given kind with a formatted cause.
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind and operation to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first Error found in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
