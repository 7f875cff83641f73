package coding

var (
	xaK0 = [16]int32{0, 60, 115, 98, 122}
	xaK1 = [16]int32{0, 0, -52, -55, -60}
)

const xaFrameSize = 0x80

// decodeXA decodes CD-XA 4-bit ADPCM. A 0x80 frame holds 16 bytes of sound
// parameters and eight 28-sample sound units, shared by both channels of a
// stereo stream. Histories are kept unclamped.
func decodeXA(st *ChannelState, out []int16, stride, first, samples, channel, channels int) {
	xaCh := 1
	if channels > 1 {
		xaCh = 2
	}
	if channel >= xaCh {
		for k := 0; k < samples; k++ {
			out[k*stride] = 0
		}
		return
	}
	spf := 28 * 8 / xaCh

	var frame [xaFrameSize]byte
	hist1, hist2 := st.Hist1, st.Hist2
	curFrame := -1

	for k := 0; k < samples; k++ {
		s := first + k
		if fi := s / spf; fi != curFrame {
			curFrame = fi
			readFrame(st, frame[:], st.Offset+int64(fi)*xaFrameSize)
		}
		in := s % spf
		i, j := in/28, in%28

		sp := frame[0x04+i*xaCh+channel]
		index := int(sp>>4) & 0xf
		shift := uint(sp & 0xf)
		if shift > 12 {
			shift = 9
		}

		var su byte
		if xaCh == 1 {
			su = frame[0x10+j*4+i/2]
			if i&1 != 0 {
				su >>= 4
			}
		} else {
			su = frame[0x10+j*4+i]
			if channel == 1 {
				su >>= 4
			}
		}
		sample := int32(int16(uint16(su&0xf)<<12)) >> shift
		sample += (xaK0[index]*hist1 + xaK1[index]*hist2 + 32) >> 6

		hist2 = hist1
		hist1 = sample
		out[k*stride] = clamp16(sample)
	}

	st.Hist1, st.Hist2 = hist1, hist2
}
