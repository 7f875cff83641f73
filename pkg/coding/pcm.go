package coding

import "encoding/binary"

// readFrame fills p from the channel source at off, zero filling the tail.
func readFrame(st *ChannelState, p []byte, off int64) {
	if st.SF == nil {
		clear(p)
		return
	}
	st.SF.Fill(p, off)
}

func decodePCM16(st *ChannelState, out []int16, stride, first, samples, spacing int, bigEndian bool) {
	var b [2]byte
	for i := 0; i < samples; i++ {
		readFrame(st, b[:], st.Offset+int64(first+i)*2*int64(spacing))
		if bigEndian {
			out[i*stride] = int16(binary.BigEndian.Uint16(b[:]))
		} else {
			out[i*stride] = int16(binary.LittleEndian.Uint16(b[:]))
		}
	}
}

func decodePCM8(st *ChannelState, out []int16, stride, first, samples, spacing int, unsigned bool) {
	var b [1]byte
	for i := 0; i < samples; i++ {
		readFrame(st, b[:], st.Offset+int64(first+i)*int64(spacing))
		if unsigned {
			out[i*stride] = int16(int32(b[0])*0x100 - 0x8000)
		} else {
			out[i*stride] = int16(int8(b[0])) * 0x100
		}
	}
}
