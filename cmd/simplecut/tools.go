package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/simplecut/simplecut-agent/internal/config"
	"github.com/simplecut/simplecut-agent/internal/cuts"
	"github.com/simplecut/simplecut-agent/internal/encode"
	"github.com/simplecut/simplecut-agent/internal/export"
	"github.com/simplecut/simplecut-agent/internal/ffmpeg"
	"github.com/simplecut/simplecut-agent/internal/hwaccel"
	"github.com/simplecut/simplecut-agent/internal/logging"
	"github.com/simplecut/simplecut-agent/internal/probe"
	"github.com/simplecut/simplecut-agent/internal/settings"
)

// toolEnv is the configuration shared by the one-shot commands. They log to
// stderr so stdout stays machine readable.
func toolEnv() (config.Config, *slog.Logger, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.LogLevel()
	if os.Getenv(config.EnvLogLevel) == "" {
		level = "warn"
	}
	return cfg, logging.NewLoggerTo(os.Stderr, level), nil
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE",
		Short: "Print video metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := toolEnv()
			if err != nil {
				return err
			}
			meta, err := probe.NewProber(cfg.FFprobePath(), logger).Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		},
	}
}

func newEncodersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encoders",
		Short: "Detect the video encoder exports will use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := toolEnv()
			if err != nil {
				return err
			}
			enc := hwaccel.NewDetector(cfg.FFmpegPath(), cfg.HWAccelDisabled(), logger).Encoder(cmd.Context())
			kind := "software"
			if enc.Hardware {
				kind = "hardware"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", enc.Name, enc.Display, kind)
			return nil
		},
	}
}

type cutFlags struct {
	output         string
	ranges         []string
	mode           string
	separator      float64
	separatorColor string
}

func newCutCmd() *cobra.Command {
	var f cutFlags
	cmd := &cobra.Command{
		Use:   "cut FILE",
		Short: "Trim and join ranges of a video without the UI",
		Example: "  simplecut cut talk.mp4 -o highlights.mp4 --range 12.5-40 --range 01:10-01:32\n" +
			"  simplecut cut talk.mp4 -o clean.mp4 --mode cut --range 0-5 --separator 1.5",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCut(cmd, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (.mp4, .mkv or .mov)")
	cmd.Flags().StringArrayVarP(&f.ranges, "range", "r", nil, "region START-END in seconds or [HH:]MM:SS[.mmm]; repeatable")
	cmd.Flags().StringVar(&f.mode, "mode", string(cuts.ModeKeep), "keep exports the ranges, cut exports everything else")
	cmd.Flags().Float64Var(&f.separator, "separator", 0, "seconds of filler between segments (0 disables)")
	cmd.Flags().StringVar(&f.separatorColor, "separator-color", string(ffmpeg.SeparatorBlack), "separator colour: black or white")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runCut(cmd *cobra.Command, input string, f cutFlags) error {
	if f.mode != string(cuts.ModeKeep) && f.mode != string(cuts.ModeCut) {
		return fmt.Errorf("--mode must be keep or cut, got %q", f.mode)
	}
	if f.separatorColor != string(ffmpeg.SeparatorBlack) && f.separatorColor != string(ffmpeg.SeparatorWhite) {
		return fmt.Errorf("--separator-color must be black or white, got %q", f.separatorColor)
	}
	sep := ffmpeg.Separator{Duration: settings.DefaultSeparatorDuration, Color: ffmpeg.SeparatorColor(f.separatorColor)}
	if f.separator > 0 {
		if f.separator < settings.MinSeparatorDuration || f.separator > settings.MaxSeparatorDuration {
			return fmt.Errorf("--separator must be between %.1f and %.1f seconds",
				settings.MinSeparatorDuration, settings.MaxSeparatorDuration)
		}
		sep.Enabled = true
		sep.Duration = f.separator
	}

	input, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	output, err := filepath.Abs(f.output)
	if err != nil {
		return err
	}
	if err := export.ValidateOutputFile(output, input); err != nil {
		return err
	}

	cfg, logger, err := toolEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	meta, err := probe.NewProber(cfg.FFprobePath(), logger).Probe(ctx, input)
	if err != nil {
		return err
	}

	segments, err := segmentsFromRanges(meta.DurationMs, f.ranges, cuts.Mode(f.mode))
	if err != nil {
		return err
	}

	controller := encode.NewController(encode.Config{
		Binary:   cfg.FFmpegPath(),
		LogDir:   cfg.LogDir(),
		Encoders: hwaccel.NewDetector(cfg.FFmpegPath(), cfg.HWAccelDisabled(), logger),
		Logger:   logger,
	})

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Encoding"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetRenderBlankState(true),
	)
	unsub := controller.Subscribe(func(ev encode.Event) {
		if ev.Kind == encode.EventProgress {
			_ = bar.Set(ev.Percent)
		}
	})
	defer unsub()

	// the session must outlive ctx so a Ctrl-C can still be turned into a
	// graceful cancel
	sess, err := controller.Start(context.Background(), encode.Request{
		Segments: segments,
		Options: ffmpeg.Options{
			InputPath:  input,
			OutputPath: output,
			HasAudio:   meta.HasAudio,
			Separator:  sep,
			Width:      meta.Width,
			Height:     meta.Height,
			FPS:        meta.FPS,
		},
	})
	if err != nil {
		return err
	}

	select {
	case <-sess.Done():
	case <-ctx.Done():
		fmt.Fprintln(cmd.ErrOrStderr(), "\ncancelling...")
		controller.Cancel()
	}
	res, _ := sess.Wait(context.Background())

	switch res.State {
	case encode.StateSucceeded:
		_ = bar.Finish()
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%s (%s, %s)\n", res.Message, sess.Encoder.Display, res.Duration.Round(10*time.Millisecond))
		fmt.Fprintln(cmd.OutOrStdout(), res.OutputPath)
		return nil
	case encode.StateCancelled:
		return errors.New(res.Message)
	default:
		if res.Detail != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), res.Detail)
		}
		if res.LogPath != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "session log:", res.LogPath)
		}
		return errors.New(res.Message)
	}
}
