package coding

var imaStepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14,
	16, 17, 19, 21, 23, 25, 28, 31,
	34, 37, 41, 45, 50, 55, 60, 66,
	73, 80, 88, 97, 107, 118, 130, 143,
	157, 173, 190, 209, 230, 253, 279, 307,
	337, 371, 408, 449, 494, 544, 598, 658,
	724, 796, 876, 963, 1060, 1166, 1282, 1411,
	1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024,
	3327, 3660, 4026, 4428, 4871, 5358, 5894, 6484,
	7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794,
	32767,
}

var imaIndexTable = [16]int32{
	-1, -1, -1, -1, 2, 4, 6, 8,
	-1, -1, -1, -1, 2, 4, 6, 8,
}

func clampStep(idx int32) int32 {
	if idx < 0 {
		return 0
	}
	if idx > 88 {
		return 88
	}
	return idx
}

// imaExpandStd is the original IMA expansion, computed in 3-bit fixed point.
func imaExpandStd(nib int32, hist1, stepIndex *int32) {
	decoded := *hist1 << 3
	step := imaStepTable[*stepIndex]
	delta := step*(nib&7)*2 + step
	if nib&8 != 0 {
		decoded -= delta
	} else {
		decoded += delta
	}
	*hist1 = int32(clamp16(decoded >> 3))
	*stepIndex = clampStep(*stepIndex + imaIndexTable[nib])
}

// imaExpandMS is the shift-and-add expansion used by Microsoft and DVI.
func imaExpandMS(nib int32, hist1, stepIndex *int32) {
	decoded := *hist1
	step := imaStepTable[*stepIndex]
	delta := step >> 3
	if nib&1 != 0 {
		delta += step >> 2
	}
	if nib&2 != 0 {
		delta += step >> 1
	}
	if nib&4 != 0 {
		delta += step
	}
	if nib&8 != 0 {
		decoded -= delta
	} else {
		decoded += delta
	}
	*hist1 = int32(clamp16(decoded))
	*stepIndex = clampStep(*stepIndex + imaIndexTable[nib])
}

// decodeIMA decodes headerless mono nibble streams. Standard IMA is low
// nibble first, old-style DVI is high nibble first.
func decodeIMA(st *ChannelState, out []int16, stride, first, samples int, dvi bool) {
	hist1, step := st.Hist1, clampStep(st.StepIndex)
	var b [1]byte
	for k := 0; k < samples; k++ {
		i := first + k
		readFrame(st, b[:], st.Offset+int64(i/2))
		var shift uint
		if dvi {
			if i&1 == 0 {
				shift = 4
			}
			imaExpandMS(int32(b[0]>>shift)&0xf, &hist1, &step)
		} else {
			if i&1 != 0 {
				shift = 4
			}
			imaExpandStd(int32(b[0]>>shift)&0xf, &hist1, &step)
		}
		out[k*stride] = int16(hist1)
	}
	st.Hist1, st.StepIndex = hist1, step
}

// decodeIMAInt decodes nibble-interleaved channel pairs: each byte holds one
// sample of two channels. IMA keeps even channels in the low nibble, DVI in
// the high nibble.
func decodeIMAInt(st *ChannelState, out []int16, stride, first, samples, channel, channels int, dvi bool) {
	hist1, step := st.Hist1, clampStep(st.StepIndex)
	bytesPerSample := int64((channels + 1) / 2)
	var shift uint
	if (channel&1 == 0) == dvi {
		shift = 4
	}
	var b [1]byte
	for k := 0; k < samples; k++ {
		i := first + k
		readFrame(st, b[:], st.Offset+int64(i)*bytesPerSample+int64(channel/2))
		nib := int32(b[0]>>shift) & 0xf
		if dvi {
			imaExpandMS(nib, &hist1, &step)
		} else {
			imaExpandStd(nib, &hist1, &step)
		}
		out[k*stride] = int16(hist1)
	}
	st.Hist1, st.StepIndex = hist1, step
}

const (
	xboxFrameSize       = 0x24
	xboxSamplesPerFrame = 64
)

// decodeXboxIMA decodes Xbox IMA: per frame, a 4 byte header per channel
// (history, step index) followed by 4 byte nibble groups interleaved across
// channels, low nibble first.
func decodeXboxIMA(st *ChannelState, out []int16, stride, first, samples, channel, channels int) {
	if channels <= 0 {
		channels = 1
	}
	hist1, step := st.Hist1, clampStep(st.StepIndex)
	frameBytes := int64(xboxFrameSize * channels)
	var hdr [4]byte
	var b [1]byte

	for k := 0; k < samples; k++ {
		s := first + k
		base := st.Offset + int64(s/xboxSamplesPerFrame)*frameBytes
		j := s % xboxSamplesPerFrame
		if j == 0 {
			readFrame(st, hdr[:], base+int64(4*channel))
			hist1 = int32(int16(uint16(hdr[0]) | uint16(hdr[1])<<8))
			step = clampStep(int32(int16(uint16(hdr[2]) | uint16(hdr[3])<<8)))
		}
		off := base + int64(4*channels) + int64(j/8)*4*int64(channels) + int64(4*channel) + int64(j%8/2)
		readFrame(st, b[:], off)
		var shift uint
		if j&1 != 0 {
			shift = 4
		}
		imaExpandMS(int32(b[0]>>shift)&0xf, &hist1, &step)
		out[k*stride] = int16(hist1)
	}
	st.Hist1, st.StepIndex = hist1, step
}
