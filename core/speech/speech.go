// Package speech defines the contract between the orchestration core and
// an external speech/NLU provider.
package speech

import (
	"io"

	"github.com/lunavoice/luna/core/audio"
)

// ConversationRequest describes one conversational exchange. Audio is the
// pull side of the orchestrator's backpressure stream; the provider reads
// it until EOF.
type ConversationRequest struct {
	SessionID   string
	ContentType string
	Audio       io.Reader
	Context     map[string]any
}

// IntentResponse is the structured command the provider recognized in the
// user's utterance. Speech, when non-empty, is text the assistant should
// say back regardless of command dispatch.
type IntentResponse struct {
	Intent string         `json:"intent"`
	Args   map[string]any `json:"args"`
	Speech string         `json:"speech"`
}

// ConversationResult is returned when the provider finishes consuming the
// audio stream. Context replaces the session context map wholesale.
type ConversationResult struct {
	Transcript string
	Response   *IntentResponse
	Context    map[string]any
}

type ConversationOptions struct {
	InterimTranscriptionCallback func(transcript string)
	TranscriptionCallback        func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo
}

type ConversationOption func(*ConversationOptions)

func WithTranscriptionCallback(callback func(transcript string)) ConversationOption {
	return func(o *ConversationOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) ConversationOption {
	return func(o *ConversationOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) ConversationOption {
	return func(o *ConversationOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) ConversationOption {
	return func(o *ConversationOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) ConversationOption {
	return func(o *ConversationOptions) {
		o.EncodingInfo = encodingInfo
	}
}

type SynthesizeOptions struct {
	Voice string
	Speed float64

	// AudioChunkCallback receives encoded audio deltas as they arrive from
	// the provider, in stream order.
	AudioChunkCallback func(audio []byte)
}

type SynthesizeOption func(*SynthesizeOptions)

func WithVoice(voice string) SynthesizeOption {
	return func(o *SynthesizeOptions) {
		o.Voice = voice
	}
}

func WithSpeed(speed float64) SynthesizeOption {
	return func(o *SynthesizeOptions) {
		o.Speed = speed
	}
}

func WithAudioChunkCallback(callback func(audio []byte)) SynthesizeOption {
	return func(o *SynthesizeOptions) {
		o.AudioChunkCallback = callback
	}
}
