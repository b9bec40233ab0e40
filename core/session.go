package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/lunavoice/luna/core/events"
	"github.com/lunavoice/luna/core/speech"
)

var (
	ErrNoAudioStream  = errors.New("no audio stream")
	ErrNotInitialized = errors.New("speech provider not initialized")
)

// sessionClient owns one conversational exchange with the provider:
// it feeds the audio stream plus a context snapshot in, swaps the context
// for the provider's returned map, and streams synthesized audio out to
// the bus.
type sessionClient struct {
	provider SpeechProvider
	reporter *errorReporter
	bus      *Bus
}

// startConversation runs one exchange over stream. Precondition failures
// (missing stream, unconfigured provider) are returned to the caller;
// provider failures mid-exchange are reported on the error channel
// instead, and the call returns (nil, nil) so the turn can wind down
// through the normal path.
func (s *sessionClient) startConversation(
	ctx context.Context,
	contextMap *ContextMap,
	request speech.ConversationRequest,
	opts ...speech.ConversationOption,
) (*speech.ConversationResult, error) {
	if request.Audio == nil {
		return nil, ErrNoAudioStream
	}
	if s.provider == nil {
		return nil, ErrNotInitialized
	}

	request.Context = contextMap.Snapshot()

	result, err := s.provider.Converse(ctx, request, opts...)
	if err != nil {
		s.reporter.Report(ctx, "session", fmt.Errorf("conversation failed: %w", err))
		return nil, nil
	}

	if result != nil && result.Context != nil {
		contextMap.Replace(result.Context)
	}
	return result, nil
}

// synthesizeSpeech splits text into budget-sized chunks and synthesizes
// them strictly in sequence so playback order matches sentence order.
// Audio deltas are published as they arrive; a final stream-ended event
// carries the total byte count. The concatenated audio is returned.
// Cancelling ctx stops the loop between chunks and suppresses any further
// audio events, so an abandoned turn goes quiet instead of finishing its
// reply.
func (s *sessionClient) synthesizeSpeech(ctx context.Context, text string, opts ...speech.SynthesizeOption) ([]byte, error) {
	if s.provider == nil {
		return nil, ErrNotInitialized
	}

	chunks := splitSpeechText(text)
	if len(chunks) == 0 {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "synthesizeSpeech")
	defer span.End()

	ordinal := 0
	var combined []byte
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return combined, err
		}

		chunkOpts := append([]speech.SynthesizeOption{
			speech.WithAudioChunkCallback(func(audio []byte) {
				if ctx.Err() != nil {
					return
				}
				s.bus.Publish(events.NewSpeechChunk(audio, ordinal))
				ordinal++
			}),
		}, opts...)

		audio, err := s.provider.Synthesize(ctx, chunk, chunkOpts...)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				// Abandoned, not failed; nothing to report.
				return combined, err
			}
			s.reporter.Report(ctx, "synthesis", fmt.Errorf("synthesis failed: %w", err))
			return combined, err
		}
		combined = append(combined, audio...)
	}

	if err := ctx.Err(); err != nil {
		return combined, err
	}
	s.bus.Publish(events.NewSpeechStreamEnded(len(combined)))
	return combined, nil
}
