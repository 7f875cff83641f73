package coding

var eaxaTable = [20]int32{
	0, 240, 460, 392,
	0, 0, -208, -220,
	0, 1, 3, 4,
	7, 8, 10, 11,
	0, -1, -3, -4,
}

// decodeEAXA decodes EA-XA v1. Mono frames are 0x0f bytes (coef/shift byte
// and 14 bytes of nibbles, high first). Stereo frames are 0x1e bytes with
// per-channel coefs and shifts in the two header nibbles and one byte per
// sample pair.
func decodeEAXA(st *ChannelState, out []int16, stride, first, samples, channel int, stereo bool) {
	frameSize := int64(0x0f)
	if stereo {
		frameSize = 0x1e
	}
	hn := channel == 0

	var frame [0x1e]byte
	hist1, hist2 := st.Hist1, st.Hist2
	curFrame := -1
	var coef1, coef2 int32
	var shift uint

	for k := 0; k < samples; k++ {
		s := first + k
		if fi := s / 28; fi != curFrame {
			curFrame = fi
			readFrame(st, frame[:frameSize], st.Offset+int64(fi)*frameSize)
			if stereo {
				ci, si := frame[0]&0xf, frame[1]&0xf
				if hn {
					ci, si = frame[0]>>4, frame[1]>>4
				}
				coef1, coef2 = eaxaTable[ci], eaxaTable[ci+4]
				shift = uint(si) + 8
			} else {
				ci := frame[0] >> 4
				coef1, coef2 = eaxaTable[ci], eaxaTable[ci+4]
				shift = uint(frame[0]&0xf) + 8
			}
		}

		i := s % 28
		var nib byte
		if stereo {
			nib = frame[0x02+i]
			if hn {
				nib >>= 4
			}
		} else {
			nib = frame[0x01+i/2]
			if i&1 == 0 {
				nib >>= 4
			}
		}
		sample := int32(uint32(nib&0xf)<<28) >> shift
		sample = (sample + coef1*hist1 + coef2*hist2 + 128) >> 8
		v := clamp16(sample)

		out[k*stride] = v
		hist2 = hist1
		hist1 = int32(v)
	}

	st.Hist1, st.Hist2 = hist1, hist2
}
