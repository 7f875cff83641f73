package coding

const (
	dspFrameSize       = 0x08
	dspSamplesPerFrame = 14
)

// decodeDSP decodes Nintendo GC/Wii DSP ADPCM: 8 byte frames of a
// scale/predictor byte and 14 nibbles, high nibble first. Predictor pairs
// come from the channel coefficient table.
func decodeDSP(st *ChannelState, out []int16, stride, first, samples int) {
	var frame [dspFrameSize]byte
	hist1, hist2 := st.Hist1, st.Hist2
	curFrame := -1
	var scale, coef1, coef2 int32

	for k := 0; k < samples; k++ {
		s := first + k
		if fi := s / dspSamplesPerFrame; fi != curFrame {
			curFrame = fi
			readFrame(st, frame[:], st.Offset+int64(fi)*dspFrameSize)
			scale = 1 << (frame[0] & 0xf)
			idx := int(frame[0]>>4) & 0xf
			coef1, coef2 = 0, 0
			if idx < 8 {
				coef1 = int32(st.Coefs[idx*2])
				coef2 = int32(st.Coefs[idx*2+1])
			}
		}

		i := s % dspSamplesPerFrame
		b := frame[0x01+i/2]
		var nib int32
		if i&1 != 0 {
			nib = lowNibbleSigned(b)
		} else {
			nib = highNibbleSigned(b)
		}
		sample := (nib * scale) << 11
		sample = (sample + 1024 + coef1*hist1 + coef2*hist2) >> 11
		v := clamp16(sample)

		out[k*stride] = v
		hist2 = hist1
		hist1 = int32(v)
	}

	st.Hist1, st.Hist2 = hist1, hist2
}
