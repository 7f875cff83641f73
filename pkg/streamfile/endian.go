package streamfile

import "encoding/binary"

func (sf *StreamFile) read(off int64, n int) ([8]byte, error) {
	var b [8]byte
	_, err := sf.ReadAt(b[:n], off)
	return b, err
}

// U8 reads an unsigned byte at off.
func (sf *StreamFile) U8(off int64) (uint8, error) {
	b, err := sf.read(off, 1)
	return b[0], err
}

// S8 reads a signed byte at off.
func (sf *StreamFile) S8(off int64) (int8, error) {
	b, err := sf.read(off, 1)
	return int8(b[0]), err
}

// U16LE reads a little-endian uint16 at off. Like every fixed-width
// reader here, a read past the end returns vgmerr.ErrSourceExhausted.
func (sf *StreamFile) U16LE(off int64) (uint16, error) {
	b, err := sf.read(off, 2)
	return binary.LittleEndian.Uint16(b[:]), err
}

// U16BE reads a big-endian uint16 at off.
func (sf *StreamFile) U16BE(off int64) (uint16, error) {
	b, err := sf.read(off, 2)
	return binary.BigEndian.Uint16(b[:]), err
}

// S16LE reads a little-endian int16 at off.
func (sf *StreamFile) S16LE(off int64) (int16, error) {
	v, err := sf.U16LE(off)
	return int16(v), err
}

// S16BE reads a big-endian int16 at off.
func (sf *StreamFile) S16BE(off int64) (int16, error) {
	v, err := sf.U16BE(off)
	return int16(v), err
}

// U32LE reads a little-endian uint32 at off.
func (sf *StreamFile) U32LE(off int64) (uint32, error) {
	b, err := sf.read(off, 4)
	return binary.LittleEndian.Uint32(b[:]), err
}

// U32BE reads a big-endian uint32 at off.
func (sf *StreamFile) U32BE(off int64) (uint32, error) {
	b, err := sf.read(off, 4)
	return binary.BigEndian.Uint32(b[:]), err
}

// S32LE reads a little-endian int32 at off.
func (sf *StreamFile) S32LE(off int64) (int32, error) {
	v, err := sf.U32LE(off)
	return int32(v), err
}

// S32BE reads a big-endian int32 at off.
func (sf *StreamFile) S32BE(off int64) (int32, error) {
	v, err := sf.U32BE(off)
	return int32(v), err
}

// U64LE reads a little-endian uint64 at off.
func (sf *StreamFile) U64LE(off int64) (uint64, error) {
	b, err := sf.read(off, 8)
	return binary.LittleEndian.Uint64(b[:]), err
}

// U64BE reads a big-endian uint64 at off.
func (sf *StreamFile) U64BE(off int64) (uint64, error) {
	b, err := sf.read(off, 8)
	return binary.BigEndian.Uint64(b[:]), err
}

// U16 and U32 read in the given order; parsers with a per-file endian flag
// use them.
func (sf *StreamFile) U16(off int64, order binary.ByteOrder) (uint16, error) {
	b, err := sf.read(off, 2)
	return order.Uint16(b[:]), err
}

func (sf *StreamFile) U32(off int64, order binary.ByteOrder) (uint32, error) {
	b, err := sf.read(off, 4)
	return order.Uint32(b[:]), err
}
