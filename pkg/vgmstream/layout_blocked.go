package vgmstream

import (
	"fmt"
	"log/slog"
)

// BlockUpdater names the container chunk walker of a blocked stream.
type BlockUpdater int

const (
	// BlockNone has no walker; a blocked stream with it renders silence.
	BlockNone BlockUpdater = iota
	// BlockAST walks Nintendo AST "BLCK" chunks.
	BlockAST
	// BlockHALPST follows the HALPST block chain, loop included.
	BlockHALPST
	// BlockXA walks raw CD-XA sectors of one file/channel.
	BlockXA
	// BlockEASCHL walks EA SCHl style chunks; non-audio chunks are empty.
	BlockEASCHL
	// BlockEA1SNH walks EA 1SNh/SEAD style blocks of either endianness.
	BlockEA1SNH
	// BlockEASWVR walks SWVR multiblocks of the selected subsong.
	BlockEASWVR
	// BlockSTRSNDS walks 3DO STR chunks up to each SNDS sample block.
	BlockSTRSNDS
	// BlockRWS walks headerless FullSize blocks with per channel padding.
	BlockRWS
	// BlockVID1 walks VID1 "FRAM" blocks through their AUDD subchunk.
	BlockVID1
	// BlockADM walks headerless FullSize blocks in Interleave runs.
	BlockADM
	// BlockXVAS walks fixed 0x20000 XVAS blocks.
	BlockXVAS
	// BlockPS2IAB walks IAB blocks with data and block sizes in the header.
	BlockPS2IAB
	// BlockWSI walks WSI blocks of per channel runs with 0x10 byte headers.
	BlockWSI
	// BlockEMFFPS2 walks EMFF blocks with little-endian headers.
	BlockEMFFPS2
	// BlockEMFFNGC walks EMFF blocks with big-endian headers.
	BlockEMFFNGC
	// BlockMXCH walks word aligned MxCh chunks, skipping "pad ".
	BlockMXCH
	// BlockSNDGCWSTR walks SND+STR (GameCube) blocks configured by GCWStr.
	BlockSNDGCWSTR
	// BlockVGS walks Harmonix VGS frames, one per channel.
	BlockVGS
	// BlockCAF walks CAF "CFD " blocks carrying DSP coefficients.
	BlockCAF
	// BlockDEC walks headerless blocks of FullSize (0x800 by default).
	BlockDEC
	// BlockXBOX walks Xbox IMA frames, one per channel.
	BlockXBOX
	// BlockPS2STRLR walks blocks with a 0x20 byte size header.
	BlockPS2STRLR
	// BlockSTHD walks "STHD" blocks of FullSize (0x800 by default).
	BlockSTHD
	// BlockFILP walks FILp blocks behind a 0x800 byte header.
	BlockFILP
	// BlockGSB walks GSB blocks behind a 0x20 byte header.
	BlockGSB
	// BlockMUL walks Crystal Dynamics MUL blocks, skipping non-audio ones.
	BlockMUL
	// BlockVAS walks headerless blocks of FullSize (0x20000 by default).
	BlockVAS
	// BlockXAAIFF walks XA-in-AIFF sectors of 0x914 bytes.
	BlockXAAIFF
	// BlockXWAV walks XWAV blocks carrying size and sample count.
	BlockXWAV
	// BlockEASNS walks EA SNS/SPS blocks; DSP state rides in the first.
	BlockEASNS
)

var updaterNames = map[BlockUpdater]string{
	BlockNone:      "none",
	BlockAST:       "AST",
	BlockHALPST:    "HALPST",
	BlockXA:        "XA",
	BlockEASCHL:    "EA SCHl",
	BlockEA1SNH:    "EA 1SNh",
	BlockEASWVR:    "EA SWVR",
	BlockSTRSNDS:   "STR SNDS",
	BlockRWS:       "RWS",
	BlockVID1:      "VID1",
	BlockADM:       "ADM",
	BlockXVAS:      "XVAS",
	BlockPS2IAB:    "PS2 IAB",
	BlockWSI:       "WSI",
	BlockEMFFPS2:   "EMFF PS2",
	BlockEMFFNGC:   "EMFF NGC",
	BlockMXCH:      "MxCh",
	BlockSNDGCWSTR: "SND GCW STR",
	BlockVGS:       "VGS",
	BlockCAF:       "CAF",
	BlockDEC:       "DEC",
	BlockXBOX:      "Xbox",
	BlockPS2STRLR:  "PS2 STR LR",
	BlockSTHD:      "STHD",
	BlockFILP:      "FILp",
	BlockGSB:       "GSB",
	BlockMUL:       "MUL",
	BlockVAS:       "VAS",
	BlockXAAIFF:    "XA AIFF",
	BlockXWAV:      "XWAV",
	BlockEASNS:     "EA SNS",
}

// String returns the container name of the updater.
func (u BlockUpdater) String() string {
	if name, ok := updaterNames[u]; ok {
		return name
	}
	return fmt.Sprintf("updater(%d)", int(u))
}

// BlockQuirk enables container specific workarounds of an updater.
type BlockQuirk uint32

const (
	// QuirkXVASGarbage: the last 0x20 bytes of every 0x20000 block are not audio.
	QuirkXVASGarbage BlockQuirk = 1 << iota
	// QuirkADMPadding: end-of-data PS-ADPCM frames sit between some blocks.
	QuirkADMPadding
	// QuirkSWVRFill: FILL chunks pad to 0x6000/0x10000 boundaries with a
	// bogus size field.
	QuirkSWVRFill
)

// BlockPhase is the lifecycle of the block walker.
type BlockPhase int

const (
	// BlockFresh: the next update loads the first block.
	BlockFresh BlockPhase = iota
	BlockInBlock
	// BlockFinished: the walker passed the last block or hit a bad one.
	BlockFinished
)

func (p BlockPhase) String() string {
	switch p {
	case BlockFresh:
		return "fresh"
	case BlockInBlock:
		return "in block"
	case BlockFinished:
		return "finished"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// BlockState is the block walker state of a blocked stream. Parsers set the
// configuration fields and NextOffset to the first block; the engine walks
// the rest on render.
type BlockState struct {
	Updater BlockUpdater
	Quirks  BlockQuirk

	// FullSize is the fixed block stride for headerless updaters, or the
	// data size of GSB blocks and the stride of STHD blocks.
	FullSize int64
	// ChannelSize is the usable bytes per channel inside a fixed block.
	ChannelSize int64

	Phase BlockPhase
	Index int

	CurrentOffset int64
	NextOffset    int64
	// CurrentSize is in bytes per channel, CurrentSamples overrides it when
	// non-zero. Negative samples mark a terminal block.
	CurrentSize    int64
	CurrentSamples int

	GCW *GCWStr
	// gcwCoefsRead is set once the first SND+STR block loaded the
	// coefficients. Later visits keep them.
	gcwCoefsRead bool

	pendingFlush bool
}

// GCWStr configures the SND+STR (GameCube) updater: a first block with a
// per-channel header, regular blocks and a short last block.
type GCWStr struct {
	BlockSize         int64 // regular block size per channel
	FirstHeaderSize   int64
	FirstBlockSize    int64
	FirstBlockSamples int
	LastBlockSize     int64
	LastBlockSamples  int
	BlockSamples      int
	Blocks            int
}

// renderBlocked decodes a stream split into container chunks. Every chunk
// boundary asks the updater for the next chunk's cursors and sample count.
func (s *Stream) renderBlocked(out []int16, frames int) {
	if s.Block.Phase == BlockFresh {
		s.blockUpdate(s.Block.NextOffset)
	}
	spf := s.Coding.SamplesPerFrame(s.Channels)
	thisBlock := s.blockSamples()

	done := 0
	for done < frames {
		if s.LoopFlag && s.doLoop() {
			spf = s.Coding.SamplesPerFrame(s.Channels)
			thisBlock = s.blockSamples()
			continue
		}

		if s.Block.Phase == BlockFinished || thisBlock < 0 {
			if s.Block.Phase != BlockFinished {
				slog.Debug("blocked: bad block", "meta", s.Meta, "offset", s.Block.CurrentOffset)
				s.Block.Phase = BlockFinished
			}
			s.silenceFrom(out, done, frames)
			return
		}

		todo := min(s.samplesToDo(thisBlock, spf), frames-done)
		if todo < 0 || (todo == 0 && s.samplesIntoBlock < thisBlock) {
			s.silenceFrom(out, done, frames)
			return
		}

		if s.Block.CurrentOffset >= 0 {
			s.decode(out[done*s.Channels:], todo)
		} else {
			clear(out[done*s.Channels : (done+todo)*s.Channels])
		}
		done += todo
		s.advance(todo)

		if s.samplesIntoBlock >= thisBlock {
			s.blockUpdate(s.Block.NextOffset)
			spf = s.Coding.SamplesPerFrame(s.Channels)
			thisBlock = s.blockSamples()
			s.samplesIntoBlock = 0
		}
	}
}

// blockSamples is the sample count of the current block.
func (s *Stream) blockSamples() int {
	b := &s.Block
	if b.CurrentSamples != 0 {
		return b.CurrentSamples
	}
	if b.CurrentSize < 0 {
		return -1
	}
	spf := s.Coding.SamplesPerFrame(s.Channels)
	bpf := s.Coding.BytesPerFrame(s.Channels)
	if bpf == 0 {
		// 4-bit codecs without a byte frame
		return int(b.CurrentSize) * 2 * spf
	}
	return int(b.CurrentSize/int64(bpf)) * spf
}

// blockUpdate moves the walker to the block at off.
func (s *Stream) blockUpdate(off int64) {
	b := &s.Block
	if b.Phase == BlockFresh {
		b.Index = 0
	} else {
		b.Index++
	}
	b.Phase = BlockInBlock

	sf := s.Ch[0].SF
	if sf == nil || off < 0 || off >= sf.Size() {
		b.CurrentOffset = off
		b.NextOffset = off
		b.CurrentSize = 0
		b.CurrentSamples = -1
		b.Phase = BlockFinished
		return
	}

	b.CurrentSamples = 0
	switch b.Updater {
	case BlockAST:
		s.updateAST(off)
	case BlockHALPST:
		s.updateHALPST(off)
	case BlockXA:
		s.updateXA(off)
	case BlockEASCHL:
		s.updateEASCHL(off)
	case BlockEA1SNH:
		s.updateEA1SNH(off)
	case BlockEASWVR:
		s.updateEASWVR(off)
	case BlockSTRSNDS:
		s.updateSTRSNDS(off)
	case BlockRWS:
		s.updateRWS(off)
	case BlockVID1:
		s.updateVID1(off)
	case BlockADM:
		s.updateADM(off)
	case BlockXVAS:
		s.updateXVAS(off)
	case BlockPS2IAB:
		s.updatePS2IAB(off)
	case BlockWSI:
		s.updateWSI(off)
	case BlockEMFFPS2:
		s.updateEMFF(off, false)
	case BlockEMFFNGC:
		s.updateEMFF(off, true)
	case BlockMXCH:
		s.updateMXCH(off)
	case BlockSNDGCWSTR:
		s.updateSNDGCWSTR(off)
	case BlockVGS:
		s.updateVGS(off)
	case BlockCAF:
		s.updateCAF(off)
	case BlockDEC:
		s.updateFixed(off, 0x800)
	case BlockXBOX:
		s.updateXBOX(off)
	case BlockPS2STRLR:
		s.updatePS2STRLR(off)
	case BlockSTHD:
		s.updateSTHD(off)
	case BlockFILP:
		s.updateFILP(off)
	case BlockGSB:
		s.updateGSB(off)
	case BlockMUL:
		s.updateMUL(off)
	case BlockVAS:
		s.updateFixed(off, 0x20000)
	case BlockXAAIFF:
		s.updateXAAIFF(off)
	case BlockXWAV:
		s.updateXWAV(off)
	case BlockEASNS:
		s.updateEASNS(off)
	default:
		b.CurrentSamples = -1
	}

	if b.CurrentSamples < 0 || s.blockSamples() < 0 {
		b.Phase = BlockFinished
		return
	}
	if s.blockSamples() == 0 && b.NextOffset <= b.CurrentOffset {
		// an empty block that does not advance would spin forever
		slog.Debug("blocked: stuck block", "meta", s.Meta, "offset", b.CurrentOffset)
		b.CurrentSamples = -1
		b.Phase = BlockFinished
	}
}

// CountBlockedSamples walks every block of a freshly set up blocked
// stream and returns the total sample count. Parsers use it when the
// header does not carry the length.
func CountBlockedSamples(s *Stream) int {
	saved := s.Block
	savedCh := append(s.Ch[:0:0], s.Ch...)
	savedSample := s.currentSample
	defer func() {
		s.Block = saved
		copy(s.Ch, savedCh)
		s.currentSample = savedSample
	}()

	s.currentSample = 0
	s.Block.Phase = BlockFresh
	s.blockUpdate(s.Block.NextOffset)
	for s.Block.Phase != BlockFinished {
		s.currentSample += s.blockSamples()
		s.blockUpdate(s.Block.NextOffset)
	}
	return s.currentSample
}

func (s *Stream) read32(off int64) uint32 {
	sf := s.Ch[0].SF
	var v uint32
	if s.CodecBigEndian {
		v, _ = sf.U32BE(off)
	} else {
		v, _ = sf.U32LE(off)
	}
	return v
}

func (s *Stream) u32be(off int64) uint32 {
	v, _ := s.Ch[0].SF.U32BE(off)
	return v
}

func (s *Stream) u32le(off int64) uint32 {
	v, _ := s.Ch[0].SF.U32LE(off)
	return v
}

func (s *Stream) u16be(off int64) uint16 {
	v, _ := s.Ch[0].SF.U16BE(off)
	return v
}

func (s *Stream) u16le(off int64) uint16 {
	v, _ := s.Ch[0].SF.U16LE(off)
	return v
}

func (s *Stream) s16le(off int64) int16 {
	v, _ := s.Ch[0].SF.S16LE(off)
	return v
}

func (s *Stream) s16be(off int64) int16 {
	v, _ := s.Ch[0].SF.S16BE(off)
	return v
}

func (s *Stream) u8(off int64) uint8 {
	v, _ := s.Ch[0].SF.U8(off)
	return v
}

func id32(id string) uint32 {
	return uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
}

// readDSPCoefs loads big endian DSP predictor pairs for every channel from
// off, spaced by spacing bytes.
func (s *Stream) readDSPCoefs(off, spacing int64) {
	for ch := range s.Ch {
		for i := range s.Ch[ch].Coefs {
			s.Ch[ch].Coefs[i] = s.s16be(off + int64(ch)*spacing + int64(i)*2)
		}
	}
}
