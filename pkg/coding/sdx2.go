package coding

// SDX2: 2:1 squareroot-delta-exact, 3DO.
var sdx2Squares = func() [256]int16 {
	var t [256]int16
	for i := -128; i < 128; i++ {
		v := i * i * 2
		if i < 0 {
			v = -v
		}
		t[i+128] = int16(v)
	}
	return t
}()

// decodeSDX2 expands one byte per sample. Even bytes are exact values,
// odd bytes are deltas on the previous sample. The sum wraps at 16 bits.
func decodeSDX2(st *ChannelState, out []int16, stride, first, samples, spacing int) {
	hist := st.Hist1
	var b [1]byte
	for k := 0; k < samples; k++ {
		readFrame(st, b[:], st.Offset+int64(first+k)*int64(spacing))
		v := int8(b[0])
		if v&1 == 0 {
			hist = 0
		}
		sample := int16(hist + int32(sdx2Squares[int(v)+128]))
		out[k*stride] = sample
		hist = int32(sample)
	}
	st.Hist1 = hist
}
