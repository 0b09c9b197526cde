// Command darbuka parses, plays, and exports percussion rhythm notation.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tiffz/darbuka"
	"github.com/tiffz/darbuka/internal/api"
	"github.com/tiffz/darbuka/internal/midifile"
	"github.com/tiffz/darbuka/internal/rhythmfile"
	"github.com/tiffz/darbuka/internal/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	notationText string
	timeValue    string
	bpm          float64
	outputFile   string
	serverPort   int
	loopForever  bool
	loopCount    int
	sampleRate   int
	volume       float64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "darbuka",
	Short: "Percussion rhythm notation toolkit",
	Long: `darbuka works with ASCII percussion notation for goblet drums.

Sounds: D (dum), T (tak), K (ka), S (slap). '-' sustains the previous
symbol, '_' is a rest, '|' separates measures, '|: ... :|xN' repeats a
section, and '%' repeats the previous measure.

Examples:
  darbuka parse --notation "D-T-__T-D---T---"
  darbuka play --notation "D-T-__T-D---T---" --bpm 110
  darbuka midi maqsum.yaml -o maqsum.mid
  darbuka wav maqsum.yaml -o maqsum.wav --loops 4
  darbuka tui maqsum.yaml
  darbuka serve -p 8080`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var parseCmd = &cobra.Command{
	Use:   "parse [file.yaml]",
	Short: "Parse notation and print the expanded measures",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runParse,
}

var gridCmd = &cobra.Command{
	Use:   "grid [file.yaml]",
	Short: "Print the step grid for a rhythm",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGrid,
}

var midiCmd = &cobra.Command{
	Use:   "midi [file.yaml]",
	Short: "Export a rhythm to a standard MIDI file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMIDI,
}

var wavCmd = &cobra.Command{
	Use:   "wav [file.yaml]",
	Short: "Render a rhythm to a 32-bit float WAV file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWAV,
}

var playCmd = &cobra.Command{
	Use:   "play [file.yaml]",
	Short: "Play a rhythm through the audio device",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlay,
}

var tuiCmd = &cobra.Command{
	Use:   "tui [file.yaml]",
	Short: "Launch the interactive grid editor",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&notationText, "notation", "n", "", "Inline notation (instead of a file)")
	rootCmd.PersistentFlags().StringVarP(&timeValue, "time", "t", "", "Time signature, e.g. 4/4 or 10/8")
	rootCmd.PersistentFlags().Float64VarP(&bpm, "bpm", "b", 0, "Tempo in beats per minute")

	midiCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path (required)")
	_ = midiCmd.MarkFlagRequired("output")

	wavCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .wav file path (required)")
	_ = wavCmd.MarkFlagRequired("output")
	wavCmd.Flags().IntVar(&loopCount, "loops", 1, "Render the rhythm this many times")
	wavCmd.Flags().IntVar(&sampleRate, "sample-rate", 48000, "Output sample rate")

	playCmd.Flags().BoolVar(&loopForever, "loop", false, "Loop playback; use with --loops to count then stop")
	playCmd.Flags().IntVar(&loopCount, "loops", 0, "When --loop, stop after N loops (0 = loop forever)")
	playCmd.Flags().IntVar(&sampleRate, "sample-rate", 48000, "Playback sample rate")
	playCmd.Flags().Float64Var(&volume, "volume", 1.0, "Master volume scalar")

	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(gridCmd)
	rootCmd.AddCommand(midiCmd)
	rootCmd.AddCommand(wavCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadInput resolves the rhythm from a positional file argument or the
// --notation flag, with --time and --bpm overriding the file's values.
func loadInput(args []string) (darbuka.Rhythm, float64, error) {
	text := notationText
	ts := darbuka.CommonTime()
	tempo := 120.0

	if len(args) == 1 {
		f, err := rhythmfile.Load(args[0])
		if err != nil {
			return darbuka.Rhythm{}, 0, err
		}
		if text == "" {
			text = f.Notation
		}
		ts = f.TimeSignature()
		if f.BPM > 0 {
			tempo = f.BPM
		}
	}
	if text == "" {
		return darbuka.Rhythm{}, 0, fmt.Errorf("no input: pass a rhythm file or --notation")
	}
	if timeValue != "" {
		var num, den int
		if _, err := fmt.Sscanf(timeValue, "%d/%d", &num, &den); err != nil {
			return darbuka.Rhythm{}, 0, fmt.Errorf("invalid time signature %q: want NUM/DEN", timeValue)
		}
		ts = darbuka.TimeSignature{Numerator: num, Denominator: den}
	}
	if bpm > 0 {
		tempo = bpm
	}

	r := darbuka.Parse(text, ts)
	if !r.Valid {
		return darbuka.Rhythm{}, 0, fmt.Errorf("invalid notation: %s", r.Err)
	}
	return r, tempo, nil
}

func runParse(cmd *cobra.Command, args []string) error {
	r, _, err := loadInput(args)
	if err != nil {
		return err
	}
	fmt.Printf("time %d/%d, %d measures, %d ticks\n",
		r.TimeSig.Numerator, r.TimeSig.Denominator, len(r.Measures), r.TotalTicks())
	for i, m := range r.Measures {
		tag := ""
		if r.IsGhost(darbuka.MeasureIndex(i)) {
			tag = fmt.Sprintf("  (copy of %d)", r.SourceOf(darbuka.MeasureIndex(i))+1)
		}
		var notes []string
		for _, n := range m.Notes {
			notes = append(notes, fmt.Sprintf("%s/%d", n.Sound, n.Sixteenths))
		}
		fmt.Printf("  %2d: %s%s\n", i+1, strings.Join(notes, " "), tag)
	}
	if r.Padding > 0 {
		fmt.Printf("padded with %d sixteenths of rest\n", r.Padding)
	}
	for _, w := range r.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}

func runGrid(cmd *cobra.Command, args []string) error {
	r, _, err := loadInput(args)
	if err != nil {
		return err
	}
	g := darbuka.GridOf(&r)
	spm := r.TimeSig.SixteenthsPerMeasure()
	for row := 0; row*spm < len(g.Cells); row++ {
		var b strings.Builder
		for col := 0; col < spm; col++ {
			t := darbuka.Tick(row*spm + col)
			if int(t) >= len(g.Cells) {
				break
			}
			cell := g.Cells[t]
			switch {
			case t >= g.ActualLength:
				b.WriteByte('.')
			case cell.Onset:
				b.WriteByte(cell.Sound.Token())
			case cell.Sound != darbuka.Rest:
				b.WriteByte('=')
			default:
				b.WriteByte('-')
			}
		}
		fmt.Printf("%2d: %s\n", row+1, b.String())
	}
	return nil
}

func runMIDI(cmd *cobra.Command, args []string) error {
	r, tempo, err := loadInput(args)
	if err != nil {
		return err
	}
	opts := midifile.DefaultOptions()
	opts.BPM = tempo
	if err := midifile.WriteFile(&r, outputFile, opts); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outputFile)
	return nil
}

func runWAV(cmd *cobra.Command, args []string) error {
	r, tempo, err := loadInput(args)
	if err != nil {
		return err
	}
	opts := darbuka.DefaultRenderOptions()
	opts.BPM = tempo
	opts.Loops = loopCount
	samples, err := darbuka.RenderSamples(&r, sampleRate, opts)
	if err != nil {
		return err
	}
	wav := darbuka.EncodeWAVFloat32LE(samples, sampleRate, 2)
	if err := os.WriteFile(outputFile, wav, 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%.2fs)\n", outputFile, float64(len(samples)/2)/float64(sampleRate))
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	r, tempo, err := loadInput(args)
	if err != nil {
		return err
	}
	pl, err := darbuka.NewPlayer(sampleRate, darbuka.WithLoopPlayback(loopForever))
	if err != nil {
		return err
	}
	pl.SetMasterVolume(volume)
	ch := pl.Watch()
	if err := pl.Play(&r, tempo); err != nil {
		return err
	}
	loops := 0
	for event := range ch {
		switch event.Kind {
		case darbuka.EventPlaybackEnded:
			fmt.Println("playback completed")
			return nil
		case darbuka.EventLoopCompleted:
			loops++
			fmt.Printf("loop %d completed\n", loops)
			if loopForever && loopCount > 0 && loops >= loopCount {
				return pl.Stop()
			}
		}
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	return tui.Run(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("listening on :%d\n", serverPort)
	return api.StartServer(serverPort)
}
