package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/drgolem/vgmtools/internal/streamplayer"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

var (
	playOpts            playOptions
	playDeviceIdx       int
	playBufferCapacity  uint64
	playPAFrames        int
	playSamplesPerFrame int
	playSimple          bool
)

var playCmd = &cobra.Command{
	Use:   "play <file> [file...]",
	Short: "Play streams through PortAudio",
	Long: `Play one or more game audio streams one after another using PortAudio
callback mode. A producer goroutine renders the stream into a lock-free frame
ring that the audio callback drains.

By default each stream plays its loops, fades out and moves on. With
--simple a looping stream plays its loop forever until interrupted.

Examples:
  # Play a stream with the default two loops and fade
  vgmtools play bgm.hps

  # Loop forever
  vgmtools play bgm.ast --simple

  # A composition, then a plain file, on device 0
  vgmtools play -d 0 stage1.txtp boss.vag

  # Larger buffers for slow machines
  vgmtools play -c 256 -s 4096 bgm.genh

Status Reporting:
  Playback status is logged every 2 seconds showing the played and buffered
  time against the play length.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playOpts.addFlags(playCmd)
	def := streamplayer.DefaultConfig()
	playCmd.Flags().IntVarP(&playDeviceIdx, "device", "d", def.DeviceIndex, "Audio output device index")
	playCmd.Flags().Uint64VarP(&playBufferCapacity, "capacity", "c", def.BufferCapacity, "Ring capacity (number of frames)")
	playCmd.Flags().IntVarP(&playPAFrames, "paframes", "p", def.FramesPerBuffer, "PortAudio frames per buffer")
	playCmd.Flags().IntVarP(&playSamplesPerFrame, "samples", "s", def.SamplesPerFrame, "Samples per rendered frame")
	playCmd.Flags().BoolVar(&playSimple, "simple", false, "Ignore loop and fade settings; loop forever when the stream loops")
}

func runPlay(cmd *cobra.Command, args []string) {
	slog.Info("Initializing PortAudio")
	if err := portaudio.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		slog.Error("Hint: Make sure PortAudio is installed on your system")
		os.Exit(1)
	}
	defer portaudio.Terminate()

	slog.Info("PortAudio initialized", "version", portaudio.GetVersion())
	slog.Info("Configuration",
		"device_index", playDeviceIdx,
		"frame_capacity", playBufferCapacity,
		"pa_frames_per_buffer", playPAFrames,
		"samples_per_frame", playSamplesPerFrame,
		"file_count", len(args))

	player := streamplayer.New(streamplayer.Config{
		DeviceIndex:     playDeviceIdx,
		BufferCapacity:  playBufferCapacity,
		FramesPerBuffer: playPAFrames,
		SamplesPerFrame: playSamplesPerFrame,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	interrupted := false
	for i, fileName := range args {
		if interrupted {
			break
		}
		slog.Info("Playing file", "index", i+1, "total", len(args), "file", fileName)

		c, err := openController(cmd, fileName)
		if err != nil {
			slog.Error("Failed to open stream", "file", fileName, "error", err)
			continue
		}
		if err := player.Play(filepath.Base(fileName), c); err != nil {
			slog.Error("Failed to start playback", "file", fileName, "error", err)
			continue
		}

		statusDone := make(chan struct{})
		go monitorPlayback(player, statusDone)

		select {
		case <-player.Done():
			slog.Info("File completed", "file", fileName)
		case sig := <-sigChan:
			slog.Info("Signal received, stopping", "signal", sig)
			interrupted = true
		}
		close(statusDone)
		if err := player.Stop(); err != nil {
			slog.Error("Failed to stop player", "error", err)
		}
	}

	if interrupted {
		slog.Info("Playback interrupted")
	} else {
		slog.Info("All files completed", "total", len(args))
	}
}

func openController(cmd *cobra.Command, fileName string) (*vgmstream.Controller, error) {
	s, err := openStream(fileName, playOpts.subsong)
	if err != nil {
		return nil, err
	}
	slog.Info("Stream opened",
		"file", filepath.Base(fileName),
		"format", s.Meta,
		"coding", s.Coding,
		"layout", s.Layout,
		"sample_rate", s.SampleRate,
		"channels", s.Channels,
		"loop", s.LoopFlag)

	if playSimple {
		return vgmstream.NewController(s, nil), nil
	}
	pc, err := playOpts.playConfig(cmd, s)
	if err != nil {
		s.Close()
		return nil, err
	}
	return vgmstream.NewController(s, pc), nil
}

// monitorPlayback logs playback status every 2 seconds
func monitorPlayback(player interface{ Status() streamplayer.Status }, done chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status := player.Status()
			rate := status.SampleRate
			if rate <= 0 {
				continue
			}

			total := "forever"
			if !status.Forever {
				total = formatClock(time.Duration(status.TotalSamples) * time.Second / time.Duration(rate))
			}
			buffered := float64(status.BufferedSamples) / float64(rate)

			slog.Info("Playback status",
				"file", status.Name,
				"format", fmt.Sprintf("%dHz:16bit:%dch:%dframes", rate, status.Channels, status.FramesPerBuffer),
				"played", formatClock(time.Duration(status.PlayedSamples)*time.Second/time.Duration(rate)),
				"total", total,
				"buffered", fmt.Sprintf("%.3fs", buffered),
				"elapsed", formatClock(status.ElapsedTime))
		case <-done:
			return
		}
	}
}

// formatClock formats d as hh:mm:ss.msec
func formatClock(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms%3600000/60000, ms%60000/1000, ms%1000)
}
