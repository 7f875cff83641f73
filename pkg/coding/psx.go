package coding

// PS-ADPCM filter pairs, including the extended table found in a few PS3 titles.
var psxCoefs = [16][2]float32{
	{0.0, 0.0},
	{0.9375, 0.0},
	{1.796875, -0.8125},
	{1.53125, -0.859375},
	{1.90625, -0.9375},
	{0.46875, -0.0},
	{0.8984375, -0.40625},
	{0.765625, -0.4296875},
	{0.953125, -0.46875},
	{0.234375, -0.0},
	{0.44921875, -0.203125},
	{0.3828125, -0.21484375},
	{0.4765625, -0.234375},
	{0.5, -0.9375},
	{0.234375, -0.9375},
	{0.109375, -0.9375},
}

const (
	psxFrameSize       = 0x10
	psxSamplesPerFrame = 28
)

// decodePSX decodes Sony PS-ADPCM: 0x10 byte frames of a coef/shift byte,
// a flag byte and 28 nibbles, low nibble first. Flag 7 frames decode as zero.
func decodePSX(st *ChannelState, out []int16, stride, first, samples int, badFlags bool) {
	var frame [psxFrameSize]byte
	hist1, hist2 := st.Hist1, st.Hist2
	curFrame := -1
	var coef int
	var shift uint
	var flag byte

	for k := 0; k < samples; k++ {
		s := first + k
		if fi := s / psxSamplesPerFrame; fi != curFrame {
			curFrame = fi
			readFrame(st, frame[:], st.Offset+int64(fi)*psxFrameSize)
			coef = int(frame[0]>>4) & 0xf
			sh := uint(frame[0] & 0xf)
			if coef > 5 {
				coef = 0
			}
			if sh > 12 {
				sh = 9
			}
			shift = 20 - sh
			flag = frame[1]
			if badFlags {
				flag = 0
			}
		}

		i := s % psxSamplesPerFrame
		var sample int32
		if flag < 0x07 {
			b := frame[0x02+i/2]
			var nib int32
			if i&1 != 0 {
				nib = highNibbleSigned(b)
			} else {
				nib = lowNibbleSigned(b)
			}
			sample = nib << shift
			sample += int32((psxCoefs[coef][0]*float32(hist1) + psxCoefs[coef][1]*float32(hist2)) * 256.0)
			sample >>= 8
		}

		v := clamp16(sample)
		out[k*stride] = v
		hist2 = hist1
		hist1 = int32(v)
	}

	st.Hist1, st.Hist2 = hist1, hist2
}
