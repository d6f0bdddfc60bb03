package avplayer

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Luoseyznl/RealTimeAVPlayer/player"
)

var volume float64

var playCmd = &cobra.Command{
	Use:   "play <media_file>",
	Short: "Play a media file's video and audio streams in sync",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().Float64VarP(&volume, "volume", "V", 1.0, "initial audio volume in [0,1]")
}

func runPlay(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot open %s: %w", path, err)
	}

	controller := player.NewController(logger)
	controller.SetStateObserver(func(s player.PlayerState) {
		logger.WithField("state", s).Info("playback state changed")
	})

	renderer := player.NewKittyRenderer(os.Stdout, logger, nil)

	var lastLog time.Time
	timestampObserver := func(currentUs, durationUs int64) {
		if time.Since(lastLog) < time.Second {
			return
		}
		lastLog = time.Now()
		logger.WithFields(map[string]interface{}{
			"current_us":  currentUs,
			"duration_us": durationUs,
		}).Debug("presenting")
	}

	if err := controller.Open(path, renderer, timestampObserver); err != nil {
		return fmt.Errorf("open failed: %w", err)
	}
	defer controller.Close()

	controller.SetVolume(volume)

	if err := controller.Play(); err != nil {
		return fmt.Errorf("play failed: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig).Info("signal received, stopping playback")
			controller.Stop()
			return nil
		case <-ticker.C:
			if controller.IsFinished() {
				logger.Info("playback finished")
				return nil
			}
		}
	}
}
