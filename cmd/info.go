package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drgolem/vgmtools/pkg/meta"
	"github.com/drgolem/vgmtools/pkg/vgmstream"
)

var (
	infoOpts    playOptions
	infoFormats bool
	infoAll     bool
)

var infoCmd = &cobra.Command{
	Use:   "info [file...]",
	Short: "Print stream metadata",
	Long: `Print what a stream holds: sample rate, channels, length, loop points,
coding, layout and the container it was read from, plus the play length the
current playback options would give.

Examples:
  # Describe a file
  vgmtools info bgm.hps

  # Every subsong of a multi stream file
  vgmtools info movie.xa --all

  # Play length with three loops
  vgmtools info bgm.ast --loops 3

  # List the supported containers
  vgmtools info --formats`,
	Run: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoOpts.addFlags(infoCmd)
	infoCmd.Flags().BoolVar(&infoFormats, "formats", false, "List supported containers and extensions")
	infoCmd.Flags().BoolVar(&infoAll, "all", false, "Describe every subsong")
}

func runInfo(cmd *cobra.Command, args []string) {
	if infoFormats {
		for _, p := range meta.Formats() {
			exts := make([]string, len(p.Exts))
			for i, e := range p.Exts {
				exts[i] = "." + e
				if e == "" {
					exts[i] = "(no extension)"
				}
			}
			fmt.Printf("%-12s %s\n", p.Name, strings.Join(exts, " "))
		}
		return
	}
	if len(args) == 0 {
		cmd.Usage()
		os.Exit(1)
	}

	failed := false
	for _, fileName := range args {
		if err := describeFile(cmd, fileName); err != nil {
			slog.Error("Failed to open stream", "file", fileName, "error", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func describeFile(cmd *cobra.Command, fileName string) error {
	s, err := openStream(fileName, infoOpts.subsong)
	if err != nil {
		return err
	}
	subsongs := []*vgmstream.Stream{s}
	defer func() {
		for _, sub := range subsongs {
			sub.Close()
		}
	}()
	if infoAll && s.NumStreams > 1 {
		for i := 2; i <= s.NumStreams; i++ {
			sub, err := openStream(fileName, i)
			if err != nil {
				return err
			}
			subsongs = append(subsongs, sub)
		}
	}

	for _, sub := range subsongs {
		fmt.Printf("file: %s\n", fileName)
		fmt.Print(sub.Describe())
		pc, err := infoOpts.playConfig(cmd, sub)
		if err != nil {
			return err
		}
		c := vgmstream.NewController(sub, pc)
		if c.Forever() {
			fmt.Println("play duration: forever")
		} else {
			total := c.TotalSamples()
			fmt.Printf("play duration: %d samples (%s)\n", total, clock(total, c.SampleRate()))
		}
		fmt.Println()
	}
	return nil
}

// clock formats samples at rate as m:ss.mmm.
func clock(samples, rate int) string {
	if rate <= 0 {
		return "?"
	}
	ms := int64(samples) * 1000 / int64(rate)
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, ms%60000/1000, ms%1000)
}
