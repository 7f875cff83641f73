package meta

import (
	"fmt"

	"github.com/drgolem/vgmtools/pkg/coding"
	"github.com/drgolem/vgmtools/pkg/streamfile"
	"github.com/drgolem/vgmtools/pkg/vgmerr"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

const (
	xaSectorSize  = 0x930
	xaMaxSubsongs = 1024
)

var xaSync = "\x00\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\x00"

// xaTrack is one file/channel pair found in the sector headers.
type xaTrack struct {
	config uint16
	start  int64
	ended  bool
}

// initXA parses raw CD-XA sector dumps, bare or behind a RIFF "CDXA"
// header. Every distinct file/channel pair is a subsong.
func initXA(sf *streamfile.StreamFile) (*vgmstream.Stream, error) {
	const op = "xa"
	var start int64
	switch {
	case sf.MatchID(0, xaSync):
		if !xaLooksValid(sf, 0) {
			return nil, notFormat(op)
		}
	case sf.MatchID(0, "RIFF") && sf.MatchID(0x08, "CDXA") && sf.MatchID(0x0c, "fmt "):
		start = 0x2c
	default:
		return nil, notFormat(op)
	}

	tracks := xaTracks(sf, start)
	if len(tracks) == 0 {
		return nil, malformed(op, "no audio sectors")
	}
	if len(tracks) > xaMaxSubsongs {
		return nil, malformed(op, "%d subsongs", len(tracks))
	}
	target := max(sf.StreamIndex, 1)
	if target > len(tracks) {
		return nil, malformed(op, "subsong %d of %d", target, len(tracks))
	}
	track := tracks[target-1]

	hdr, _ := sf.U8(track.start + 0x13)
	channels := 1
	switch hdr & 3 {
	case 0:
	case 1:
		channels = 2
	default:
		return nil, malformed(op, "coding byte 0x%02x", hdr)
	}
	rate := 37800
	switch (hdr >> 2) & 3 {
	case 0:
	case 1:
		rate = 18900
	default:
		return nil, malformed(op, "coding byte 0x%02x", hdr)
	}
	if (hdr>>4)&3 != 0 {
		return nil, vgmerr.New(vgmerr.UnsupportedCodec, op, "8-bit XA")
	}
	if hdr&0x80 != 0 {
		return nil, malformed(op, "reserved bit set")
	}

	s := vgmstream.New(channels, false)
	s.Meta = "CD-XA sectors"
	s.SampleRate = rate
	s.Coding = coding.XA
	s.Layout = vgmstream.LayoutBlocked
	s.Block.Updater = vgmstream.BlockXA
	s.Block.NextOffset = track.start
	s.CodecConfig = vgmstream.XATargetEnable | uint32(track.config)
	s.NumStreams = len(tracks)
	s.StreamIndex = target
	if len(tracks) > 1 {
		s.Name = fmt.Sprintf("%04x", track.config)
	}
	if err := s.Open(sf, track.start); err != nil {
		s.Close()
		return nil, err
	}
	s.NumSamples = vgmstream.CountBlockedSamples(s)
	return setup(s)
}

// xaTracks lists the file/channel pairs in order of first appearance. A
// pair that was ended by an EOF submode or replaced on its channel starts a
// new track when it shows up again.
func xaTracks(sf *streamfile.StreamFile, start int64) []xaTrack {
	var tracks []xaTrack
	cur := -1
	prev := uint32(0xFFFFFFFF)
	for off := start; off+0x18 <= sf.Size(); off += xaSectorSize {
		config, err := sf.U16BE(off + 0x10)
		if err != nil {
			break
		}
		submode, _ := sf.U8(off + 0x12)
		if submode&0x08 != 0 || submode&0x04 == 0 || submode&0x02 != 0 {
			continue
		}

		if uint32(config) != prev {
			cur = -1
			for i := range tracks {
				if tracks[i].config == config && !tracks[i].ended {
					cur = i
					break
				}
			}
			if cur < 0 {
				channel := config & 0xFF
				for i := len(tracks) - 1; i >= 0; i-- {
					if tracks[i].config != config && tracks[i].config&0xFF == channel {
						tracks[i].ended = true
						break
					}
				}
				tracks = append(tracks, xaTrack{config: config, start: off})
				cur = len(tracks) - 1
				if len(tracks) > xaMaxSubsongs {
					return tracks
				}
			}
			prev = uint32(config)
		}
		if submode&0x80 != 0 {
			tracks[cur].ended = true
			prev = 0xFFFFFFFF
		}
	}
	return tracks
}

// xaLooksValid checks the XA frame headers of the first audio sectors:
// filters 0..3, shifts 0..12 and repeated header pairs.
func xaLooksValid(sf *streamfile.StreamFile, off int64) bool {
	const maxSkip = 32
	sectors, skipped := 0, 0
	for sectors < 3 {
		submode, err := sf.U8(off + 0x12)
		if err != nil {
			return sectors > 0
		}
		if submode&0x08 != 0 || submode&0x04 == 0 || submode&0x02 != 0 {
			skipped++
			if sectors == 0 && skipped > maxSkip {
				return false
			}
			off += xaSectorSize
			continue
		}
		for frame := int64(0); frame < 0x900/0x80; frame++ {
			hdr, err := sf.Bytes(off+0x18+frame*0x80, 0x10)
			if err != nil {
				return false
			}
			blank := true
			for _, b := range hdr {
				if b>>4 > 3 || b&0x0F > 0x0c {
					return false
				}
				if b != 0 {
					blank = false
				}
			}
			if string(hdr[0:4]) != string(hdr[4:8]) || string(hdr[8:12]) != string(hdr[12:16]) || blank {
				return false
			}
		}
		off += xaSectorSize
		sectors++
	}
	return true
}
