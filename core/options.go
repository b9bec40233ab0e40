package orchestration

import (
	"context"
	"time"

	"github.com/lunavoice/luna/core/audio"
	"github.com/lunavoice/luna/core/speech"
)

// SpeechProvider is the external speech/NLU endpoint the orchestrator
// converses with. Converse consumes the request's audio stream until EOF
// and returns the transcript, recognized intent, and updated context.
type SpeechProvider interface {
	Converse(ctx context.Context, request speech.ConversationRequest, opts ...speech.ConversationOption) (*speech.ConversationResult, error)
	Synthesize(ctx context.Context, text string, opts ...speech.SynthesizeOption) ([]byte, error)
}

// CaptureClient abstracts the microphone backend. Implementations invoke
// onAudio from their device callback; the callback must not block.
type CaptureClient interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	Close()
	EncodingInfo() audio.EncodingInfo
}

type OrchestratorOption func(*Orchestrator)

func WithSpeechProvider(provider SpeechProvider) OrchestratorOption {
	return func(o *Orchestrator) {
		o.session.provider = provider
	}
}

func WithCaptureClient(client CaptureClient) OrchestratorOption {
	return func(o *Orchestrator) {
		o.capture = client
	}
}

func WithDispatchTable(table *DispatchTable) OrchestratorOption {
	return func(o *Orchestrator) {
		if table != nil {
			o.dispatch = table
		}
	}
}

func WithBus(bus *Bus) OrchestratorOption {
	return func(o *Orchestrator) {
		if bus != nil {
			o.rewire(bus)
		}
	}
}

// WithOrbHideDelay sets how long the orb stays visible after a turn
// finishes, covering the fade-out animation.
func WithOrbHideDelay(delay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if delay >= 0 {
			o.orbHideDelay = delay
		}
	}
}

// WithApologyText overrides the spoken fallback used when a turn fails
// without a handler-provided recovery line.
func WithApologyText(text string) OrchestratorOption {
	return func(o *Orchestrator) {
		if text != "" {
			o.apologyText = text
		}
	}
}

// WithSettleDelay sets the pause between ending the audio stream and
// awaiting the provider result, giving the provider time to flush its
// final transcript.
func WithSettleDelay(delay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if delay >= 0 {
			o.settleDelay = delay
		}
	}
}

func WithVoice(voice string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.voice = voice
	}
}
