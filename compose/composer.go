// Package compose muxes narration audio, background music, and a looped
// background video into one publishable MP4 via ffmpeg.
package compose

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"basilisk-bot/apperr"
	"basilisk-bot/config"
)

// trailingBufferSec pads the output past the narration's end so the mux's
// shortest-stream policy cannot truncate the last words.
const trailingBufferSec = 2

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// Composer assembles the final video for one run
type Composer struct {
	media config.MediaConfig
	paths config.PathsConfig

	// grace delay before scratch cleanup, letting ffmpeg release file handles
	cleanupGrace time.Duration
}

// New creates a new Composer
func New(media config.MediaConfig, paths config.PathsConfig) *Composer {
	return &Composer{
		media:        media,
		paths:        paths,
		cleanupGrace: 500 * time.Millisecond,
	}
}

// Compose writes the narration audio to scratch, probes its duration, and runs
// ffmpeg to loop the background video, trim the background music, mix both
// audio tracks, and mux everything into a single MP4 read back into memory.
// All scratch files created here are removed best-effort on every path.
func (c *Composer) Compose(ctx context.Context, audio []byte) ([]byte, error) {
	log.Println("[compose] Starting video composition...")

	if err := os.MkdirAll(c.paths.Scratch, 0o755); err != nil {
		return nil, apperr.New(apperr.TypeComposition, "create scratch dir", err)
	}

	var scratch []string
	defer func() {
		c.cleanup(scratch)
	}()

	background := c.pickBackground()
	if _, err := os.Stat(background); err != nil {
		return nil, apperr.Newf(apperr.TypeComposition, "background video missing: %s", background)
	}
	if _, err := os.Stat(c.paths.Music); err != nil {
		return nil, apperr.Newf(apperr.TypeComposition, "background music missing: %s", c.paths.Music)
	}

	runID := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	audioPath := filepath.Join(c.paths.Scratch, "narration_"+runID+".mp3")
	videoPath := filepath.Join(c.paths.Scratch, "story_"+runID+".mp4")

	if err := os.WriteFile(audioPath, audio, 0o644); err != nil {
		return nil, apperr.New(apperr.TypeComposition, "write narration scratch file", err)
	}
	scratch = append(scratch, audioPath)

	fi, err := os.Stat(audioPath)
	if err != nil || fi.Size() == 0 {
		return nil, apperr.Newf(apperr.TypeComposition, "narration audio is empty — refusing to mux")
	}

	duration, err := c.probeDuration(ctx, audioPath)
	if err != nil {
		return nil, apperr.New(apperr.TypeComposition, "probe narration duration", err)
	}

	target := int(math.Ceil(duration)) + trailingBufferSec
	log.Printf("[compose] Narration %.2fs → output %ds (background: %s)", duration, target, filepath.Base(background))

	scratch = append(scratch, videoPath)
	if err := c.runFFmpeg(ctx, background, audioPath, videoPath, target); err != nil {
		return nil, apperr.New(apperr.TypeComposition, "ffmpeg composition", err)
	}

	out, err := os.ReadFile(videoPath)
	if err != nil {
		return nil, apperr.New(apperr.TypeComposition, "read composed video", err)
	}

	log.Printf("[compose] ✅ Video ready: %d bytes", len(out))
	return out, nil
}

// pickBackground selects a random candidate from the backgrounds directory,
// falling back to the fixed default path when none are available.
func (c *Composer) pickBackground() string {
	entries, err := os.ReadDir(c.paths.Backgrounds)
	if err != nil {
		log.Printf("[compose] Warning: cannot read backgrounds dir %s: %v — using default", c.paths.Backgrounds, err)
		return c.paths.DefaultBackground
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if videoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			candidates = append(candidates, filepath.Join(c.paths.Backgrounds, e.Name()))
		}
	}
	if len(candidates) == 0 {
		log.Printf("[compose] No background candidates in %s — using default", c.paths.Backgrounds)
		return c.paths.DefaultBackground
	}
	// Top-level rand is safe for concurrent runs; a per-Composer rand.Rand
	// would race when requests overlap.
	return candidates[rand.Intn(len(candidates))]
}

// probeDuration uses ffprobe to get the audio duration in seconds
func (c *Composer) probeDuration(ctx context.Context, audioFile string) (float64, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioFile,
	)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	var dur float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &dur); err != nil {
		return 0, fmt.Errorf("parse ffprobe output %q: %w", out, err)
	}
	return dur, nil
}

// filterGraph trims the looped video and the music to target seconds and
// mixes the music under the narration. The trimmed music is amix's first
// input so duration=first makes the mixed track exactly target seconds long,
// never the raw narration length; -shortest then bounds the output at target
// and the trailing buffer survives past the narration's last sample.
func (c *Composer) filterGraph(targetSec int) string {
	scale := strings.Replace(c.media.Resolution, "x", ":", 1)

	return fmt.Sprintf(
		"[0:v]trim=duration=%d,setpts=PTS-STARTPTS,scale=%s,setsar=1[vout];"+
			"[1:a]atrim=duration=%d,volume=%.2f[bgm];"+
			"[bgm][2:a]amix=inputs=2:duration=first:normalize=0[aout]",
		targetSec, scale, targetSec, c.media.MusicVolume,
	)
}

// runFFmpeg loops the background video, applies the filter graph, and muxes
// video + mixed audio into outFile.
func (c *Composer) runFFmpeg(ctx context.Context, background, narration, outFile string, targetSec int) error {
	filter := c.filterGraph(targetSec)

	args := []string{
		"-y",
		"-stream_loop", "-1", "-i", background,
		"-i", c.paths.Music,
		"-i", narration,
		"-filter_complex", filter,
		"-map", "[vout]",
		"-map", "[aout]",
		"-c:v", "libx264",
		"-preset", "fast",
		"-b:v", c.media.VideoBitrate,
		"-r", fmt.Sprintf("%d", c.media.FPS),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", c.media.AudioBitrate,
		"-ar", fmt.Sprintf("%d", c.media.SampleRate),
		"-t", fmt.Sprintf("%d", targetSec),
		"-shortest",
		"-movflags", "+faststart",
		outFile,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String(), 800))
	}
	return nil
}

// cleanup removes scratch files after a short grace delay. Failures are
// logged, never propagated.
func (c *Composer) cleanup(paths []string) {
	if len(paths) == 0 {
		return
	}
	time.Sleep(c.cleanupGrace)
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("[compose] Warning: could not remove scratch file %s: %v", p, err)
		}
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
