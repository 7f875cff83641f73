package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	soxr "github.com/zaf/resample"

	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

var transformOpts playOptions

var transformCmd = &cobra.Command{
	Use:   "transform <input_file>",
	Short: "Render, resample and downmix a stream to WAV",
	Long: `Render a game audio stream with the playback options, resample it to a
new rate and write 16-bit PCM WAV, optionally downmixed to mono.

Examples:
  # Render to 48kHz WAV
  vgmtools transform bgm.hps --new-samplerate 48000 --out bgm48.wav

  # 22.05kHz mono, one loop, quick resampler
  vgmtools transform voice.xa --new-samplerate 22050 --mono --loops 1 --quality quick

Quality Options:
  quick, low, medium, high (default), veryhigh

Sample Rate Options:
  Common rates: 8000, 16000, 22050, 32000, 44100, 48000 Hz`,
	Args: cobra.ExactArgs(1),
	Run:  runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)

	transformOpts.addFlags(transformCmd)
	transformCmd.Flags().Int("new-samplerate", 48000, "Target sample rate in Hz")
	transformCmd.Flags().String("out", "out_transformed.wav", "Output WAV file path")
	transformCmd.Flags().Bool("mono", false, "Convert output to mono signal (average channels)")
	transformCmd.Flags().String("quality", "high", "Resampler quality")
}

var resampleQuality = map[string]int{
	"quick":    soxr.Quick,
	"low":      soxr.LowQ,
	"medium":   soxr.MediumQ,
	"high":     soxr.HighQ,
	"veryhigh": soxr.VeryHighQ,
}

func runTransform(cmd *cobra.Command, args []string) {
	inFileName := args[0]

	newSampleRate, _ := cmd.Flags().GetInt("new-samplerate")
	outFileName, _ := cmd.Flags().GetString("out")
	convertToMono, _ := cmd.Flags().GetBool("mono")
	qualityName, _ := cmd.Flags().GetString("quality")

	if newSampleRate <= 0 || newSampleRate > 384000 {
		slog.Error("Invalid sample rate", "rate", newSampleRate, "valid_range", "1-384000")
		os.Exit(1)
	}
	quality, ok := resampleQuality[qualityName]
	if !ok {
		slog.Error("Invalid resampler quality", "quality", qualityName)
		os.Exit(1)
	}

	s, err := openStream(inFileName, transformOpts.subsong)
	if err != nil {
		slog.Error("Failed to open stream", "file", inFileName, "error", err)
		os.Exit(1)
	}
	defer s.Close()

	pc, err := transformOpts.playConfig(cmd, s)
	if err != nil {
		slog.Error("Invalid playback options", "error", err)
		os.Exit(1)
	}
	c := vgmstream.NewController(s, pc)
	inSampleRate, channels := c.SampleRate(), c.Channels()

	slog.Info("Audio transformation starting",
		"input_file", inFileName,
		"input_sample_rate", inSampleRate,
		"input_channels", channels,
		"output_sample_rate", newSampleRate,
		"output_mono", convertToMono,
		"output_file", outFileName)

	pcm, err := renderAll(c)
	if err != nil {
		slog.Error("Failed to render", "error", err)
		os.Exit(1)
	}
	audioData := int16ToBytes(pcm)
	slog.Info("Rendering complete", "input_samples", len(pcm)/channels)

	resampledData, err := resampleAudio(audioData, inSampleRate, newSampleRate, channels, quality)
	if err != nil {
		slog.Error("Failed to resample audio", "error", err)
		os.Exit(1)
	}
	outSamples := len(resampledData) / (channels * 2)

	outChannels := channels
	outputData := resampledData
	if convertToMono && channels > 1 {
		outputData = convertToMono16Bit(resampledData, channels)
		outChannels = 1
	}

	slog.Info("Writing output WAV file", "path", outFileName)
	if err := writeWAVFile(outFileName, outputData, uint32(outSamples), uint16(outChannels), uint32(newSampleRate), 16); err != nil {
		slog.Error("Failed to write WAV file", "error", err)
		os.Exit(1)
	}

	slog.Info("Transformation complete",
		"input_samples", len(pcm)/channels,
		"output_samples", outSamples,
		"sample_rate_ratio", fmt.Sprintf("%.3f", float64(newSampleRate)/float64(inSampleRate)))
}

// resampleAudio resamples 16-bit interleaved audio with SoXR
func resampleAudio(audioData []byte, fromRate, toRate, channels, quality int) ([]byte, error) {
	if fromRate == toRate {
		return audioData, nil
	}

	var bufResampled bytes.Buffer
	bufWriter := bufio.NewWriter(&bufResampled)

	resampler, err := soxr.New(bufWriter, float64(fromRate), float64(toRate), channels, soxr.I16, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	if _, err := resampler.Write(audioData); err != nil {
		resampler.Close()
		return nil, fmt.Errorf("failed to resample: %w", err)
	}
	if err := resampler.Close(); err != nil {
		return nil, fmt.Errorf("failed to close resampler: %w", err)
	}
	if err := bufWriter.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush buffer: %w", err)
	}
	return bufResampled.Bytes(), nil
}

// convertToMono16Bit averages the channels of little endian 16-bit frames
func convertToMono16Bit(data []byte, channels int) []byte {
	frameBytes := channels * 2
	frames := len(data) / frameBytes
	mono := make([]byte, frames*2)
	for f := 0; f < frames; f++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			i := f*frameBytes + ch*2
			sum += int(int16(uint16(data[i]) | uint16(data[i+1])<<8))
		}
		avg := int16(sum / channels)
		mono[f*2] = byte(avg)
		mono[f*2+1] = byte(uint16(avg) >> 8)
	}
	return mono
}
