package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vgmtools",
	Short: "Decode and play streamed video game audio",
	Long: `vgmtools - decoder and player for streamed game audio.

Opens game audio containers (GENH, HPS, AST, VAG, CD-XA, EA SCHl, Switch Opus,
RIFF WAVE, Ogg Vorbis, FLAC, MP3) and TXTP compositions, decodes their ADPCM
or PCM data through the block, interleave, segment and layer layouts, and
plays them with loops, fades, padding and trims.

Commands:
  - decode: Render a stream to a 16-bit WAV file
  - info: Print stream metadata
  - play: Play streams through PortAudio
  - transform: Render, resample and optionally downmix to WAV`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := slog.LevelInfo
		if verbose {
			logLevel = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
