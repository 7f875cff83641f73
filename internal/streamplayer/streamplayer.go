package streamplayer

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/drgolem/vgmtools/pkg/framering"
	"github.com/drgolem/vgmtools/pkg/pcmframe"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

// Config sets up the output device and the buffering between the renderer
// and the PortAudio callback.
type Config struct {
	DeviceIndex     int
	BufferCapacity  uint64 // ring size in frames
	FramesPerBuffer int    // PortAudio frames per callback
	SamplesPerFrame int    // sample frames rendered into each ring frame
}

// DefaultConfig returns the settings the CLI starts from: device 1, a 64
// frame ring of 2048 samples each and 512 frames per PortAudio callback.
func DefaultConfig() Config {
	return Config{
		DeviceIndex:     1,
		BufferCapacity:  64,
		FramesPerBuffer: 512,
		SamplesPerFrame: 2048,
	}
}

// Status is a snapshot of playback progress.
type Status struct {
	Name            string
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	PlayedSamples   uint64 // sent to the device
	BufferedSamples uint64 // rendered, not yet played
	TotalSamples    int    // play length; meaningless when Forever
	Forever         bool
	ElapsedTime     time.Duration // wall clock since Play
}

// Player renders a vgmstream.Controller on a producer goroutine into a
// framering.Ring that the PortAudio callback drains.
//
// The callback runs on PortAudio's own thread. It is the only reader of the
// ring and the only writer of the current-frame fields.
type Player struct {
	cfg    Config
	ring   *framering.Ring
	stream *portaudio.PaStream
	ctrl   *vgmstream.Controller
	format pcmframe.Format
	name   string
	total  int
	loops  bool

	producerDone atomic.Bool
	complete     chan struct{}
	completeOnce sync.Once
	stopChan     chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex
	stopped      bool

	cur    pcmframe.Frame
	curOff int
	hasCur bool

	startTime time.Time
	produced  atomic.Uint64
	played    atomic.Uint64
}

// New creates a stopped player.
//
// Parameters:
//   - cfg: device and buffering settings; zero fields take DefaultConfig
//     values, and SamplesPerFrame is capped at 0xFFFF
//
// Returns:
//   - a player ready for Play
func New(cfg Config) *Player {
	def := DefaultConfig()
	if cfg.BufferCapacity == 0 {
		cfg.BufferCapacity = def.BufferCapacity
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = def.FramesPerBuffer
	}
	if cfg.SamplesPerFrame <= 0 {
		cfg.SamplesPerFrame = def.SamplesPerFrame
	}
	// pcmframe counts samples in 16 bits
	cfg.SamplesPerFrame = min(cfg.SamplesPerFrame, 0xFFFF)
	return &Player{
		cfg:  cfg,
		ring: framering.New(cfg.BufferCapacity),
	}
}

// Play starts playback of c and returns once the device is running. The
// player owns c's stream from here on; Stop closes it.
func (p *Player) Play(name string, c *vgmstream.Controller) error {
	p.start(name, c)
	if err := p.openStream(); err != nil {
		p.Stop()
		return err
	}
	slog.Debug("Playback started", "name", name)
	return nil
}

func (p *Player) start(name string, c *vgmstream.Controller) {
	p.ctrl = c
	p.name = name
	p.format = pcmframe.Format{SampleRate: uint32(c.SampleRate()), Channels: uint8(c.Channels())}
	p.total = c.TotalSamples()
	p.loops = c.Forever()

	p.producerDone.Store(false)
	p.complete = make(chan struct{})
	p.completeOnce = sync.Once{}
	p.stopChan = make(chan struct{})
	p.stopped = false
	p.hasCur = false
	p.curOff = 0
	p.ring.Reset()
	p.produced.Store(0)
	p.played.Store(0)
	p.startTime = time.Now()

	p.wg.Add(1)
	go p.producer()
}

func (p *Player) openStream() error {
	p.stream = &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  p.cfg.DeviceIndex,
			ChannelCount: int(p.format.Channels),
			SampleFormat: portaudio.SampleFmtInt16,
		},
		SampleRate: float64(p.format.SampleRate),
	}
	if err := p.stream.OpenCallback(p.cfg.FramesPerBuffer, p.audioCallback); err != nil {
		p.stream = nil
		return fmt.Errorf("failed to open stream with callback: %w", err)
	}
	if err := p.stream.StartStream(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	return nil
}

func (p *Player) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {
	n := int(frameCount) * p.format.BytesPerFrame()
	if !p.fill(output[:n]) {
		return portaudio.Complete
	}
	return portaudio.Continue
}

// fill copies queued audio into out and pads with silence on underrun. It
// returns false once the producer has finished and everything was played.
func (p *Player) fill(out []byte) bool {
	if p.producerDone.Load() && p.ring.AvailableRead() == 0 && !p.hasCur {
		clear(out)
		p.completeOnce.Do(func() { close(p.complete) })
		return false
	}

	n := 0
	for n < len(out) {
		if !p.hasCur {
			if !p.ring.Next(&p.cur) {
				break
			}
			p.hasCur = true
			p.curOff = 0
		}
		c := copy(out[n:], p.cur.Audio[p.curOff:])
		n += c
		p.curOff += c
		if p.curOff >= len(p.cur.Audio) {
			p.hasCur = false
		}
	}
	clear(out[n:])

	p.played.Add(uint64(n / p.format.BytesPerFrame()))
	return true
}

func (p *Player) producer() {
	defer p.wg.Done()
	defer p.producerDone.Store(true)

	buf := make([]int16, p.cfg.SamplesPerFrame*int(p.format.Channels))
	var pos uint64
	frames := 0

	for {
		select {
		case <-p.stopChan:
			slog.Debug("Producer stopped", "frames", frames)
			return
		default:
		}

		n := p.ctrl.Render(buf, p.cfg.SamplesPerFrame)
		if n == 0 {
			slog.Debug("Producer finished", "frames", frames, "samples", pos)
			return
		}
		batch := []pcmframe.Frame{pcmframe.FromInt16(p.format, pos, buf, n)}
		for {
			if w, _ := p.ring.Write(batch); w == 1 {
				break
			}
			select {
			case <-p.stopChan:
				return
			case <-time.After(time.Millisecond):
			}
		}
		pos += uint64(n)
		frames++
		p.produced.Add(uint64(n))
	}
}

// Done is closed when everything rendered has been played.
func (p *Player) Done() <-chan struct{} {
	return p.complete
}

// Wait blocks until playback completes on its own.
func (p *Player) Wait() {
	p.wg.Wait()
	if p.complete != nil {
		<-p.complete
	}
}

// Stop interrupts playback, closes the device stream and the played
// stream. Calling it again does nothing.
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.stopped || p.stopChan == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()

	if p.stream != nil {
		if err := p.stream.StopStream(); err != nil {
			slog.Warn("Failed to stop stream", "error", err)
		}
		if err := p.stream.CloseCallback(); err != nil {
			slog.Warn("Failed to close stream", "error", err)
		}
		p.stream = nil
	}

	var err error
	if p.ctrl != nil {
		err = p.ctrl.Stream().Close()
		p.ctrl = nil
	}
	return err
}

// Status returns the current playback progress. It is safe to call from
// any goroutine while playing.
func (p *Player) Status() Status {
	produced := p.produced.Load()
	played := p.played.Load()
	st := Status{
		Name:            p.name,
		SampleRate:      int(p.format.SampleRate),
		Channels:        int(p.format.Channels),
		FramesPerBuffer: p.cfg.FramesPerBuffer,
		PlayedSamples:   played,
		ElapsedTime:     time.Since(p.startTime),
	}
	if produced > played {
		st.BufferedSamples = produced - played
	}
	st.TotalSamples = p.total
	st.Forever = p.loops
	return st
}
