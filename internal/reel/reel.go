// Package reel renders a 9:16 slideshow video from campaign images with ffmpeg.
package reel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Output format for Instagram reels.
const (
	Width  = 1080
	Height = 1920
	FPS    = 30

	// DefaultSecondsPerImage is how long each image stays on screen.
	DefaultSecondsPerImage = 3.0
	// FadeSeconds is the fade-out applied to every image but the last.
	FadeSeconds = 0.5

	videoCRF    = 23
	videoPreset = "fast"
)

// ErrNoImages is returned when none of the inputs exist.
var ErrNoImages = errors.New("no valid images for reel")

// Options tune the rendered reel.
type Options struct {
	// SecondsPerImage defaults to DefaultSecondsPerImage when zero.
	SecondsPerImage float64
}

func (o Options) secondsPerImage() float64 {
	if o.SecondsPerImage <= 0 {
		return DefaultSecondsPerImage
	}
	return o.SecondsPerImage
}

// CheckFFmpegAvailable returns nil if ffmpeg is on PATH.
func CheckFFmpegAvailable() error {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: install with brew install ffmpeg (macOS) or apt install ffmpeg (Linux)")
	}
	log.Debug().Str("path", path).Msg("ffmpeg found")
	return nil
}

// Render writes an MP4 slideshow of images to output. Missing images are
// skipped with a warning; ErrNoImages is returned when none remain.
func Render(ctx context.Context, images []string, output string, opts Options) error {
	var valid []string
	for _, img := range images {
		if _, err := os.Stat(img); err != nil {
			log.Warn().Str("path", img).Msg("Reel image not found, skipping")
			continue
		}
		valid = append(valid, img)
	}
	if len(valid) == 0 {
		return ErrNoImages
	}

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	args := buildFFmpegArgs(valid, output, opts)
	log.Debug().Strs("args", args).Msg("Running ffmpeg reel render")

	start := time.Now()
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)
	if err != nil {
		log.Warn().Err(err).Str("ffmpeg_output", tail(string(out), 2000)).Dur("duration", elapsed).Msg("ffmpeg reel render failed")
		os.Remove(output)
		return fmt.Errorf("ffmpeg reel render failed: %w", err)
	}

	log.Info().
		Str("output_path", output).
		Int("images", len(valid)).
		Dur("render_time", elapsed).
		Msg("Reel rendered")
	return nil
}

// buildFFmpegArgs builds the slideshow command: each image is looped, scaled
// to cover 1080x1920, cropped, faded out, then all are concatenated.
func buildFFmpegArgs(images []string, output string, opts Options) []string {
	per := opts.secondsPerImage()
	args := []string{"-y"}
	for i, img := range images {
		hold := per
		if i < len(images)-1 {
			hold += FadeSeconds
		}
		args = append(args, "-loop", "1", "-t", formatSeconds(hold), "-i", img)
	}

	filters := make([]string, 0, len(images)+1)
	var concat strings.Builder
	for i := range images {
		f := fmt.Sprintf("[%d:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,setpts=PTS-STARTPTS",
			i, Width, Height, Width, Height)
		if i < len(images)-1 {
			f += fmt.Sprintf(",fade=t=out:st=%s:d=%s", formatSeconds(per), formatSeconds(FadeSeconds))
		}
		filters = append(filters, f+fmt.Sprintf("[v%d]", i))
		fmt.Fprintf(&concat, "[v%d]", i)
	}
	filters = append(filters, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[outv]", concat.String(), len(images)))

	total := per * float64(len(images))
	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[outv]",
		"-c:v", "libx264",
		"-preset", videoPreset,
		"-crf", strconv.Itoa(videoCRF),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(FPS),
		"-t", formatSeconds(total),
		"-movflags", "+faststart",
		output,
	)
	return args
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
