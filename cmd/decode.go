package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	wav "github.com/youpy/go-wav"

	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

var (
	decodeOpts playOptions
	decodeOut  string
)

var decodeCmd = &cobra.Command{
	Use:   "decode <input_file>",
	Short: "Render a stream to a WAV file",
	Long: `Decode a game audio stream and write it as 16-bit PCM WAV.

Looping streams are played the configured number of loops and then faded
out. TXTP compositions may carry their own loop, fade and trim settings;
flags given on the command line override them.

Examples:
  # Two loops and a ten second fade (the defaults)
  vgmtools decode bgm.hps

  # One loop, no fade, play the ending after the loop
  vgmtools decode bgm.ast --loops 1 --ignore-fade --out bgm.wav

  # Second subsong of a CD-XA file
  vgmtools decode movie.xa --subsong 2

  # Loop a stream without loop points and pad a second of silence
  vgmtools decode jingle.vag --force-loop --pad-end 1

  # Only the intro of a looping stream
  vgmtools decode bgm.genh --body intro`,
	Args: cobra.ExactArgs(1),
	Run:  runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeOpts.addFlags(decodeCmd)
	decodeCmd.Flags().StringVarP(&decodeOut, "out", "o", "", "Output WAV file path (default: input name with .wav)")
}

func runDecode(cmd *cobra.Command, args []string) {
	inFileName := args[0]
	outFileName := decodeOut
	if outFileName == "" {
		outFileName = strings.TrimSuffix(filepath.Base(inFileName), filepath.Ext(inFileName)) + ".wav"
	}

	s, err := openStream(inFileName, decodeOpts.subsong)
	if err != nil {
		slog.Error("Failed to open stream", "file", inFileName, "error", err)
		os.Exit(1)
	}
	defer s.Close()

	pc, err := decodeOpts.playConfig(cmd, s)
	if err != nil {
		slog.Error("Invalid playback options", "error", err)
		os.Exit(1)
	}
	c := vgmstream.NewController(s, pc)

	slog.Info("Decoding",
		"input_file", inFileName,
		"format", s.Meta,
		"coding", s.Coding,
		"sample_rate", s.SampleRate,
		"channels", s.Channels,
		"play_samples", c.TotalSamples(),
		"output_file", outFileName)

	pcm, err := renderAll(c)
	if err != nil {
		slog.Error("Failed to render", "error", err)
		os.Exit(1)
	}

	numSamples := uint32(len(pcm) / c.Channels())
	if err := writeWAVFile(outFileName, int16ToBytes(pcm), numSamples, uint16(c.Channels()), uint32(c.SampleRate()), 16); err != nil {
		slog.Error("Failed to write WAV file", "error", err)
		os.Exit(1)
	}

	slog.Info("Decode complete",
		"samples", numSamples,
		"duration", fmt.Sprintf("%.3fs", float64(numSamples)/float64(c.SampleRate())))
}

// writeWAVFile writes audio data to a WAV file
func writeWAVFile(fileName string, audioData []byte, numSamples uint32, numChannels uint16, sampleRate uint32, bitsPerSample uint16) error {
	fOut, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer fOut.Close()

	wavWriter := wav.NewWriter(fOut, numSamples, numChannels, sampleRate, bitsPerSample)

	if _, err := wavWriter.Write(audioData); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}

	return nil
}
