package orchestration

import (
	"errors"
	"io"
	"sync"
)

// highWaterFrames is the pending-frame count past which the stream reports
// backpressure to the capture path.
const highWaterFrames = 10

var ErrStreamEnded = errors.New("audio stream ended")

// AudioStream bridges the push-based capture callback to the pull-based
// provider upload. The producer writes frames at device cadence and must
// never block; the single consumer pulls bytes at network speed through
// the io.Reader side.
//
// Only one concurrent reader is supported.
type AudioStream struct {
	mu sync.Mutex

	queue  [][]byte
	offset int

	ended bool
	err   error

	bytesWritten int

	updateSignal chan struct{}
}

func NewAudioStream() *AudioStream {
	return &AudioStream{updateSignal: make(chan struct{}, 1)}
}

// Write accepts one immutable audio frame. Frames are copied so the caller
// may reuse its buffer (capture backends recycle theirs). Empty frames are
// accepted no-ops. Writes after End or Fail are rejected with
// [ErrStreamEnded] and never enqueued.
func (s *AudioStream) Write(frame []byte) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return ErrStreamEnded
	}
	if len(frame) == 0 {
		s.mu.Unlock()
		return nil
	}

	owned := make([]byte, len(frame))
	copy(owned, frame)
	s.queue = append(s.queue, owned)
	s.bytesWritten += len(owned)
	s.mu.Unlock()

	s.signalUpdate()
	return nil
}

// End marks the stream as closing. Idempotent. Frames queued before End
// drain to the reader before EOF is delivered.
func (s *AudioStream) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.mu.Unlock()

	s.signalUpdate()
}

// Fail ends the stream with err; the reader observes err after draining
// nothing further (queued frames are discarded, the failure supersedes
// them). A nil err degrades to End.
func (s *AudioStream) Fail(err error) {
	if err == nil {
		s.End()
		return
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.err = err
	s.queue = nil
	s.offset = 0
	s.mu.Unlock()

	s.signalUpdate()
}

// Read implements io.Reader for the consumer side. It delivers written
// bytes FIFO, blocking until data is available, the stream fails, or End
// was called and the queue has drained (io.EOF).
func (s *AudioStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			chunk := s.queue[0]
			n := copy(p, chunk[s.offset:])
			s.offset += n
			if s.offset == len(chunk) {
				s.queue = s.queue[1:]
				s.offset = 0
			}
			s.mu.Unlock()
			return n, nil
		}
		err := s.err
		ended := s.ended
		s.mu.Unlock()

		if err != nil {
			return 0, err
		}
		if ended {
			return 0, io.EOF
		}

		<-s.updateSignal
	}
}

// Pressured reports whether the consumer is falling behind the producer.
func (s *AudioStream) Pressured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > highWaterFrames
}

// Pending returns the number of frames queued but not yet fully consumed.
func (s *AudioStream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// BytesWritten returns the total accepted payload size.
func (s *AudioStream) BytesWritten() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesWritten
}

func (s *AudioStream) signalUpdate() {
	select {
	case s.updateSignal <- struct{}{}:
	default:
	}
}
