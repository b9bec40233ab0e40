// Package playback plays synthesized MP3 speech through the host's
// default output device.
package playback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	mp3 "github.com/hajimehoshi/go-mp3"
)

const queueCapacity = 32

// Player consumes whole MP3 clips (one per synthesized speech chunk) and
// plays them strictly in arrival order. Sentence ordering is therefore
// preserved as long as the producer enqueues in stream order.
type Player struct {
	queue chan []byte

	speakerOnce sync.Once
	speakerErr  error

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	done    chan struct{}
}

func NewPlayer() *Player {
	return &Player{queue: make(chan []byte, queueCapacity)}
}

// Enqueue schedules one MP3 clip for playback. Full queues drop the clip
// rather than block the event path; the caller may treat a false return as
// a shed signal.
func (p *Player) Enqueue(clip []byte) bool {
	if len(clip) == 0 {
		return true
	}

	select {
	case p.queue <- clip:
		return true
	default:
		return false
	}
}

// Start launches the playback worker. Subsequent calls are no-ops.
func (p *Player) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})

	go p.run(ctx)
}

func (p *Player) run(ctx context.Context) {
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case clip := <-p.queue:
			if err := p.play(ctx, clip); err != nil {
				// Malformed clips are skipped so one bad synthesis
				// result cannot wedge the queue.
				continue
			}
		}
	}
}

// Interrupt clears any queued clips and silences the speaker. The worker
// keeps running and will play the next enqueued clip.
func (p *Player) Interrupt() {
	for {
		select {
		case <-p.queue:
		default:
			speaker.Clear()
			return
		}
	}
}

func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
	speaker.Clear()
	<-p.done
}

func (p *Player) play(ctx context.Context, clip []byte) error {
	decoder, err := mp3.NewDecoder(bytes.NewReader(clip))
	if err != nil {
		return fmt.Errorf("failed to decode mp3 clip: %w", err)
	}

	sampleRate := beep.SampleRate(decoder.SampleRate())
	p.speakerOnce.Do(func() {
		p.speakerErr = speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond))
	})
	if p.speakerErr != nil {
		return fmt.Errorf("failed to initialize speaker: %w", p.speakerErr)
	}

	finished := make(chan struct{})
	speaker.Play(beep.Seq(&pcmStreamer{source: decoder}, beep.Callback(func() {
		close(finished)
	})))

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	case <-p.stopCh:
		speaker.Clear()
		return nil
	}
}

// pcmStreamer adapts go-mp3's 16-bit stereo PCM output to beep samples.
type pcmStreamer struct {
	source io.Reader
	err    error
}

func (s *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.err != nil {
		return 0, false
	}

	buf := make([]byte, len(samples)*4)
	read, err := io.ReadFull(s.source, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		s.err = err
		return 0, false
	}

	frames := read / 4
	for i := 0; i < frames; i++ {
		left := int16(uint16(buf[i*4]) | uint16(buf[i*4+1])<<8)
		right := int16(uint16(buf[i*4+2]) | uint16(buf[i*4+3])<<8)
		samples[i][0] = float64(left) / (1 << 15)
		samples[i][1] = float64(right) / (1 << 15)
	}

	return frames, frames > 0
}

func (s *pcmStreamer) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
