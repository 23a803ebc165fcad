package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tonearm/config"
	"tonearm/engine"
	"tonearm/logger"
	"tonearm/meta"
	"tonearm/output"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tonearm [files...]",
	Short: "A local audio file playback engine",
	Long: `Tonearm decodes local audio files (WAV, MP3, Ogg Vorbis, FLAC, AIFF)
into PCM and plays them through the system output device.

Tracks given on the command line are played in order. With crossfade
enabled, consecutive tracks are blended through a dual-stream mixer using
a configurable gain curve.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlayer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Local flags for the player command
	rootCmd.Flags().IntP("rate", "r", 48000, "output device sample rate in Hz")
	rootCmd.Flags().Int("buffer", 2, "decode buffer per track, in seconds")
	rootCmd.Flags().Float64("volume", 1.0, "master volume, 0.0 to 2.0")
	rootCmd.Flags().BoolP("crossfade", "x", false, "crossfade between tracks")
	rootCmd.Flags().Float64("fade-duration", 3.0, "crossfade duration in seconds")
	rootCmd.Flags().String("fade-curve", "equal-power", "crossfade curve (linear, equal-power, logarithmic, s-curve)")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	viper.BindPFlag("engine.device_rate", rootCmd.Flags().Lookup("rate"))
	viper.BindPFlag("engine.buffer_seconds", rootCmd.Flags().Lookup("buffer"))
	viper.BindPFlag("engine.volume", rootCmd.Flags().Lookup("volume"))
	viper.BindPFlag("crossfade.enabled", rootCmd.Flags().Lookup("crossfade"))
	viper.BindPFlag("crossfade.duration", rootCmd.Flags().Lookup("fade-duration"))
	viper.BindPFlag("crossfade.curve", rootCmd.Flags().Lookup("fade-curve"))
	viper.BindPFlag("logging.level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.Flags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if verbose {
		viper.Set("logging.level", "debug")
	}
}

// runPlayer plays the given files through the engine
func runPlayer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Setup logging
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	opts, err := engine.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}

	eng := engine.New(opts, output.NewSpeaker(opts.DeviceRate))
	if err := eng.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer eng.Close()

	// Setup graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	for i, path := range args {
		duration, err := playTrack(eng, path, i > 0 && opts.Crossfade.Enabled)
		if err != nil {
			fmt.Printf("Skipping %s: %v\n", path, err)
			continue
		}
		printTrack(path, duration)

		if done := waitForTrack(eng, duration, opts, i == len(args)-1, signalChan); done {
			fmt.Println("\nShutting down gracefully...")
			return nil
		}
	}

	return nil
}

func playTrack(eng *engine.Engine, path string, crossfade bool) (float64, error) {
	if crossfade {
		return eng.PlayWithCrossfade(path, 0)
	}
	return eng.Play(path)
}

// waitForTrack blocks until the track has effectively finished or a signal
// arrives. With crossfade on, it returns one fade-duration early so the
// next track can be blended in.
func waitForTrack(eng *engine.Engine, duration float64, opts engine.Options, last bool, signals <-chan os.Signal) bool {
	lead := 0.0
	if opts.Crossfade.Enabled && !last {
		lead = opts.Crossfade.Duration
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	// The play command is applied on the engine's next tick, so give the
	// track a moment to appear before treating an idle engine as finished.
	started := false
	deadline := time.Now().Add(2 * time.Second)

	for {
		select {
		case <-signals:
			return true
		case <-ticker.C:
			st := eng.State()
			if st.CurrentTrack != "" {
				started = true
			}
			if started && st.CurrentTrack == "" {
				return false
			}
			if !started && time.Now().After(deadline) {
				return false
			}
			if started && duration > 0 && st.CurrentTime >= duration-lead {
				return false
			}
		}
	}
}

func printTrack(path string, duration float64) {
	md, err := meta.Extract(path)
	if err != nil {
		fmt.Printf("Playing %s (%.0fs)\n", path, duration)
		return
	}
	if md.Artist != "" {
		fmt.Printf("Playing %s - %s (%.0fs)\n", md.Artist, md.Title, duration)
	} else {
		fmt.Printf("Playing %s (%.0fs)\n", md.Title, duration)
	}
}
