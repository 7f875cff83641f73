package coding

var aicaScaleStep = [16]int32{
	230, 230, 230, 230, 307, 409, 512, 614,
	230, 230, 230, 230, 307, 409, 512, 614,
}

var aicaScaleDelta = [16]int32{
	1, 3, 5, 7, 9, 11, 13, 15,
	-1, -3, -5, -7, -9, -11, -13, -15,
}

func clampAICAStep(step int32) int32 {
	if step < 0x7f {
		return 0x7f
	}
	if step > 0x6000 {
		return 0x6000
	}
	return step
}

// decodeAICA decodes Yamaha AICA ADPCM, low nibble first. Mono streams pack
// consecutive nibbles; the interleaved variant packs one nibble per channel
// of a stereo pair. StepIndex holds the step size.
func decodeAICA(st *ChannelState, out []int16, stride, first, samples, channel int, stereo bool) {
	hist1 := st.Hist1
	step := clampAICAStep(st.StepIndex)
	var b [1]byte
	for k := 0; k < samples; k++ {
		i := first + k
		var off int64
		var shift uint
		if stereo {
			off = st.Offset + int64(i)
			if channel&1 != 0 {
				shift = 4
			}
		} else {
			off = st.Offset + int64(i/2)
			if i&1 != 0 {
				shift = 4
			}
		}
		readFrame(st, b[:], off)
		code := int32(b[0]>>shift) & 0xf

		hist1 = hist1 * 254 / 256
		sample := int32(clamp16(hist1 + step*aicaScaleDelta[code]/8))
		step = clampAICAStep((step * aicaScaleStep[code]) >> 8)

		out[k*stride] = int16(sample)
		hist1 = sample
	}
	st.Hist1, st.StepIndex = hist1, step
}
