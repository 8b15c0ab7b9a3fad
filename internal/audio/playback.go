package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

// Playback describes one mono s16 buffer to play.
type Playback struct {
	Samples    []int16
	SampleRate int
	MediaName  string
	Icon       string
}

// Play writes the samples to the default sink and blocks until they drain.
// Cancelling ctx ends the stream early and returns ctx.Err().
func Play(ctx context.Context, p Playback) error {
	if len(p.Samples) == 0 {
		return nil
	}
	if p.SampleRate <= 0 {
		return fmt.Errorf("invalid playback sample rate %d", p.SampleRate)
	}
	icon := p.Icon
	if icon == "" {
		icon = "audio-speakers"
	}

	client, err := newClient(icon)
	if err != nil {
		return err
	}
	defer client.Close()

	src := &sampleSource{ctx: ctx, samples: p.Samples}
	stream, err := client.NewPlayback(
		pulse.Int16Reader(src.read),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(p.SampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(p.MediaName),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play stream: %w", err)
	}
	return nil
}

// sampleSource feeds samples to Pulse until exhausted or cancelled.
type sampleSource struct {
	ctx     context.Context
	mu      sync.Mutex
	samples []int16
	cursor  int
}

func (s *sampleSource) read(buf []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil || s.cursor >= len(s.samples) {
		return 0, pulse.EndOfData
	}
	n := copy(buf, s.samples[s.cursor:])
	s.cursor += n
	if s.cursor >= len(s.samples) {
		return n, pulse.EndOfData
	}
	return n, nil
}

// SamplesFromPCM16LE decodes little-endian s16 bytes. A trailing odd byte is dropped.
func SamplesFromPCM16LE(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}
