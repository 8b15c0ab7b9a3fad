package indicator

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/voxlate/internal/audio"
	"github.com/rbright/voxlate/internal/config"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueCancel
)

const (
	cueSampleRate = 16000
	cueVolume     = 0.18
	cueGap        = 22 * time.Millisecond
	cueFade       = 5 * time.Millisecond
)

// note is one sine segment of a cue.
type note struct {
	hz  float64
	dur time.Duration
}

// cueSpec pairs the built-in melody of a cue with its config override.
type cueSpec struct {
	notes []note
	file  func(config.IndicatorConfig) string
	pcm   []int16
}

var cues = map[cueKind]*cueSpec{
	// Rising pair: microphone opened.
	cueStart: {
		notes: []note{{880, 70 * time.Millisecond}, {1175, 70 * time.Millisecond}},
		file:  func(c config.IndicatorConfig) string { return c.SoundStartFile },
	},
	cueStop: {
		notes: []note{{620, 120 * time.Millisecond}},
		file:  func(c config.IndicatorConfig) string { return c.SoundStopFile },
	},
	// Translation delivered.
	cueComplete: {
		notes: []note{{740, 65 * time.Millisecond}, {988, 90 * time.Millisecond}},
		file:  func(c config.IndicatorConfig) string { return c.SoundCompleteFile },
	},
	// Falling pair: dictation discarded.
	cueCancel: {
		notes: []note{{480, 75 * time.Millisecond}, {360, 90 * time.Millisecond}},
		file:  func(c config.IndicatorConfig) string { return c.SoundCancelFile },
	},
}

func init() {
	for _, spec := range cues {
		spec.pcm = renderNotes(spec.notes)
	}
}

// emitCue plays the configured cue file for kind, falling back to the
// built-in melody when no file is set or it cannot be played.
func emitCue(ctx context.Context, kind cueKind, cfg config.IndicatorConfig) error {
	spec, ok := cues[kind]
	if !ok {
		return nil
	}
	if path := expandUserPath(spec.file(cfg)); path != "" {
		if err := playCueFile(ctx, path); err == nil {
			return nil
		}
	}
	return audio.Play(ctx, audio.Playback{
		Samples:    spec.pcm,
		SampleRate: cueSampleRate,
		MediaName:  "voxlate cue",
		Icon:       "preferences-desktop-locale",
	})
}

func cuePath(kind cueKind, cfg config.IndicatorConfig) string {
	spec, ok := cues[kind]
	if !ok {
		return ""
	}
	return expandUserPath(spec.file(cfg))
}

func cueSamples(kind cueKind) []int16 {
	if spec, ok := cues[kind]; ok {
		return spec.pcm
	}
	return nil
}

func expandUserPath(raw string) string {
	raw = strings.TrimSpace(raw)
	rest, found := strings.CutPrefix(raw, "~")
	if !found || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, rest)
}

// playCueFile hands a user-supplied sound to PipeWire.
func playCueFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cue file %q: %w", path, err)
	}
	cmd := exec.CommandContext(ctx, "pw-play", "--media-role", "Notification", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pw-play %q: %w: %s", path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// renderNotes concatenates notes with a short silence between them.
func renderNotes(notes []note) []int16 {
	gap := sampleCount(cueGap)
	var pcm []int16
	for i, n := range notes {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, renderNote(n, cueVolume)...)
	}
	return pcm
}

// renderNote synthesizes one sine note with a linear fade at both ends.
func renderNote(n note, volume float64) []int16 {
	total := sampleCount(n.dur)
	if total <= 0 || n.hz <= 0 || volume <= 0 {
		return nil
	}
	fade := min(sampleCount(cueFade), total/10)
	fade = max(fade, 1)

	step := 2 * math.Pi * n.hz / cueSampleRate
	pcm := make([]int16, total)
	for i := range pcm {
		gain := min(1, float64(i)/float64(fade), float64(total-1-i)/float64(fade))
		pcm[i] = int16(math.Round(math.Sin(step*float64(i)) * volume * gain * math.MaxInt16))
	}
	return pcm
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
