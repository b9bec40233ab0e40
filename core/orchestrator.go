package orchestration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lunavoice/luna/core/audio"
	"github.com/lunavoice/luna/core/events"
	"github.com/lunavoice/luna/core/speech"
)

const (
	// defaultOrbHideDelay keeps the orb on screen long enough for its
	// fade-out animation after a turn ends.
	defaultOrbHideDelay = 1500 * time.Millisecond
	// defaultSettleDelay gives trailing capture frames still in the device
	// pipeline time to arrive before the audio stream is ended.
	defaultSettleDelay = 300 * time.Millisecond

	defaultApologyText = "Sorry, something went wrong. Please try again."
)

// Orchestrator is the single place that knows the full turn lifecycle:
// it owns the session id, the context map, the turn phase machine, and
// the bus all other components publish to and observe.
type Orchestrator struct {
	session  sessionClient
	capture  CaptureClient
	dispatch *DispatchTable
	bus      *Bus
	reporter *errorReporter

	contextMap *ContextMap
	turn       *turnState

	mu           sync.Mutex
	sessionID    string
	stream       *AudioStream
	orbHideTimer *time.Timer
	synthCancel  context.CancelFunc

	orbHideDelay time.Duration
	settleDelay  time.Duration
	apologyText  string
	voice        string

	handlingError atomic.Bool
	closeOnce     sync.Once
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		dispatch:     NewDispatchTable(),
		contextMap:   NewContextMap(),
		turn:         newTurnState(),
		sessionID:    uuid.NewString(),
		orbHideDelay: defaultOrbHideDelay,
		settleDelay:  defaultSettleDelay,
		apologyText:  defaultApologyText,
	}
	o.rewire(NewBus())

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// rewire points the orchestrator and its facades at bus and installs the
// single error-policy subscriber.
func (o *Orchestrator) rewire(bus *Bus) {
	o.bus = bus
	o.reporter = newErrorReporter(bus)
	o.session.bus = bus
	o.session.reporter = o.reporter

	bus.SetPanicHandler(func(err error) {
		o.reporter.Report(context.Background(), "bus", err)
	})
	bus.Subscribe(events.KindErrorReported, o.handleError)
}

func (o *Orchestrator) Bus() *Bus { return o.bus }

func (o *Orchestrator) Context() *ContextMap { return o.contextMap }

func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// StartListening opens a new turn: it creates the audio stream, shows
// the orb, starts capture, and kicks off the provider exchange. The
// listening-started event always precedes any audio frame for the turn.
func (o *Orchestrator) StartListening(ctx context.Context) error {
	if !o.turn.advance(phaseIdle, phaseCapturing) {
		return fmt.Errorf("cannot start listening while %s", o.turn.current())
	}

	stream := NewAudioStream()
	o.mu.Lock()
	o.stream = stream
	sessionID := o.sessionID
	o.mu.Unlock()

	o.cancelOrbHide()
	o.bus.Publish(events.NewOrbVisibility(true))
	o.bus.Publish(events.NewListeningStarted(sessionID))

	if o.capture != nil {
		frameSeq := 0
		err := o.capture.StartCapture(ctx, func(frame []byte) {
			// Device callbacks arrive strictly in order on one goroutine;
			// numbering them here feeds the same dedup gate external
			// producers go through.
			o.SendAudioFrame(frameSeq, frame)
			frameSeq++
		})
		if err != nil {
			o.turn.forceIdle()
			o.mu.Lock()
			o.stream = nil
			o.mu.Unlock()
			return fmt.Errorf("failed to start capture: %w", err)
		}
	}

	go o.runConversation(ctx, sessionID, stream, o.turn.turn())
	return nil
}

// SendAudioFrame admits one capture frame into the current turn. Frames
// with a duplicate or decreasing per-turn counter are dropped silently,
// as are frames arriving outside a turn.
func (o *Orchestrator) SendAudioFrame(seq int, frame []byte) {
	if !o.turn.acceptFrame(seq) {
		return
	}

	o.mu.Lock()
	stream := o.stream
	o.mu.Unlock()
	if stream == nil {
		return
	}

	if err := stream.Write(frame); err != nil {
		// Stream already ended; the frame raced the turn teardown.
		return
	}
	if stream.Pressured() {
		logger.Debug("capture is outpacing the upload",
			"pending_frames", stream.Pending(),
		)
	}
}

// StopListening stops capture and, after the settle delay, ends the
// audio stream so the provider sees EOF. Safe to call more than once per
// turn; only the first call has effect.
func (o *Orchestrator) StopListening() {
	if !o.turn.advance(phaseCapturing, phaseTranscribing) {
		return
	}

	if o.capture != nil {
		if err := o.capture.StopCapture(); err != nil {
			o.reporter.Report(context.Background(), "capture", fmt.Errorf("failed to stop capture: %w", err))
		}
	}

	o.mu.Lock()
	stream := o.stream
	sessionID := o.sessionID
	o.mu.Unlock()

	o.bus.Publish(events.NewListeningStopped(sessionID))

	if stream != nil {
		if o.settleDelay > 0 {
			time.AfterFunc(o.settleDelay, stream.End)
		} else {
			stream.End()
		}
	}
}

// Reset abandons the current turn: the context map is cleared, the
// session id is regenerated, and the orb hides immediately. In-flight
// synthesis is cancelled before the reset event goes out; an in-flight
// transcription exchange is left to finish and its result is discarded
// when it returns against the old session id.
func (o *Orchestrator) Reset() {
	if o.capture != nil {
		_ = o.capture.StopCapture()
	}

	o.mu.Lock()
	if o.stream != nil {
		o.stream.End()
		o.stream = nil
	}
	cancelSynth := o.synthCancel
	o.synthCancel = nil
	o.sessionID = uuid.NewString()
	freshID := o.sessionID
	o.mu.Unlock()

	if cancelSynth != nil {
		cancelSynth()
	}

	o.contextMap.Reset()
	o.turn.forceIdle()
	o.cancelOrbHide()

	o.bus.Publish(events.NewConversationReset(freshID))
	o.bus.Publish(events.NewOrbVisibility(false))
}

func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		if o.capture != nil {
			_ = o.capture.StopCapture()
			o.capture.Close()
		}

		o.mu.Lock()
		if o.stream != nil {
			o.stream.End()
			o.stream = nil
		}
		cancelSynth := o.synthCancel
		o.synthCancel = nil
		o.mu.Unlock()

		if cancelSynth != nil {
			cancelSynth()
		}

		o.cancelOrbHide()
		o.turn.forceIdle()
	})
}

func (o *Orchestrator) runConversation(ctx context.Context, sessionID string, stream *AudioStream, turnNo uint64) {
	ctx, span := tracer.Start(ctx, "conversationTurn")
	defer span.End()

	request := speech.ConversationRequest{
		SessionID:   sessionID,
		ContentType: o.encodingInfo().MimeType(),
		Audio:       stream,
	}

	result, err := o.session.startConversation(ctx, o.contextMap, request,
		speech.WithEncodingInfo(o.encodingInfo()),
		speech.WithSpeechEndedCallback(func() {
			if !o.isStale(sessionID, turnNo) {
				o.StopListening()
			}
		}),
		speech.WithTranscriptionCallback(func(transcript string) {
			if o.isStale(sessionID, turnNo) {
				return
			}
			o.StopListening()
			o.contextMap.Set(ContextKeyTranscript, transcript)
			o.bus.Publish(events.NewProcessingStarted(transcript))
		}),
	)
	if err != nil {
		o.reporter.Report(ctx, "orchestrator", err)
		return
	}
	if result == nil {
		// Provider failure, already on the error channel; the error
		// subscriber owns the wind-down.
		return
	}
	if o.isStale(sessionID, turnNo) {
		// A reset moved the session on while the exchange was in flight.
		return
	}

	// The provider can end the exchange on its own (silence detection)
	// before anyone called StopListening; the stop event still has to
	// precede conversation-end.
	o.StopListening()
	o.turn.advance(phaseTranscribing, phaseDispatching)

	speechText := ""
	suppressProviderSpeech := false
	if result.Response != nil {
		speechText = result.Response.Speech
		if result.Response.Intent != "" {
			o.contextMap.Set(ContextKeyIntent, result.Response.Intent)
			o.contextMap.Set(ContextKeyIntentArgs, result.Response.Args)

			continuation, dispatchErr := o.dispatch.Dispatch(ctx, result.Response.Intent, o.contextMap)
			if dispatchErr != nil {
				logger.WarnContext(ctx, "intent not registered",
					"intent", result.Response.Intent,
				)
			}
			suppressProviderSpeech = continuation.Stop
		}
	}

	if message, solution, failed := o.contextMap.TakeError(); failed {
		logger.WarnContext(ctx, "command failed", "error", message)
		speechText = solution
		if speechText == "" {
			speechText = o.apologyText
		}
	} else if handlerSpeech := o.contextMap.GetString(ContextKeySpeech); handlerSpeech != "" {
		speechText = handlerSpeech
		o.contextMap.Delete(ContextKeySpeech)
	} else if suppressProviderSpeech {
		speechText = ""
	}

	o.turn.advance(phaseDispatching, phaseSynthesizing)

	if speechText != "" {
		o.bus.Publish(events.NewResponseFull(speechText))

		synthCtx, cancelSynth := o.armSynthesis(ctx, sessionID, turnNo)
		if synthCtx == nil {
			return
		}
		_, synthErr := o.session.synthesizeSpeech(synthCtx, speechText, speech.WithVoice(o.voice))
		o.disarmSynthesis(cancelSynth, sessionID, turnNo)
		if synthErr != nil {
			// Reported (or abandoned by a reset); either way the turn
			// does not finish through this path.
			return
		}
	}

	o.finishTurn(sessionID, turnNo)
}

func (o *Orchestrator) finishTurn(sessionID string, turnNo uint64) {
	if o.isStale(sessionID, turnNo) {
		return
	}
	o.bus.Publish(events.NewConversationEnded(sessionID))
	o.turn.forceIdle()
	o.scheduleOrbHide()
}

// handleError is the bus's only error subscriber and the only place that
// decides user-visible failure behavior: speak an apology, end the turn,
// hide the orb. Re-entrant reports while one is being handled are
// dropped so a failing apology cannot loop.
func (o *Orchestrator) handleError(event events.Event) {
	if !o.handlingError.CompareAndSwap(false, true) {
		return
	}
	defer o.handlingError.Store(false)

	reported, ok := event.(events.ErrorReported)
	if !ok {
		return
	}

	if o.turn.current() == phaseIdle {
		// Initialization or background failure; logged by the reporter,
		// nothing to wind down.
		return
	}

	logger.Error("turn failed",
		"source", reported.Source,
		"error", reported.Err,
	)

	if o.capture != nil {
		_ = o.capture.StopCapture()
	}
	o.mu.Lock()
	if o.stream != nil {
		o.stream.End()
		o.stream = nil
	}
	sessionID := o.sessionID
	o.mu.Unlock()

	o.turn.forceIdle()

	if _, err := o.session.synthesizeSpeech(context.Background(), o.apologyText, speech.WithVoice(o.voice)); err != nil {
		logger.Error("failed to speak apology", "error", err)
	}

	o.bus.Publish(events.NewConversationEnded(sessionID))
	o.scheduleOrbHide()
}

// armSynthesis hands the turn a cancellable synthesis context and parks
// the cancel where Reset can reach it. Returns a nil context when the
// turn went stale before synthesis could start.
func (o *Orchestrator) armSynthesis(ctx context.Context, sessionID string, turnNo uint64) (context.Context, context.CancelFunc) {
	synthCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	if o.sessionID != sessionID || o.turn.turn() != turnNo {
		o.mu.Unlock()
		cancel()
		return nil, nil
	}
	o.synthCancel = cancel
	o.mu.Unlock()
	return synthCtx, cancel
}

// disarmSynthesis releases the cancel handle, but only when this turn
// still owns it; a reset may already have handed the slot to a newer turn.
func (o *Orchestrator) disarmSynthesis(cancel context.CancelFunc, sessionID string, turnNo uint64) {
	o.mu.Lock()
	if o.sessionID == sessionID && o.turn.turn() == turnNo {
		o.synthCancel = nil
	}
	o.mu.Unlock()
	cancel()
}

func (o *Orchestrator) isStale(sessionID string, turnNo uint64) bool {
	o.mu.Lock()
	current := o.sessionID
	o.mu.Unlock()
	return current != sessionID || o.turn.turn() != turnNo
}

func (o *Orchestrator) encodingInfo() audio.EncodingInfo {
	if o.capture != nil {
		return o.capture.EncodingInfo()
	}
	return audio.GetDefaultEncodingInfo()
}

func (o *Orchestrator) scheduleOrbHide() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.orbHideTimer != nil {
		o.orbHideTimer.Stop()
	}
	o.orbHideTimer = time.AfterFunc(o.orbHideDelay, func() {
		o.bus.Publish(events.NewOrbVisibility(false))
	})
}

func (o *Orchestrator) cancelOrbHide() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.orbHideTimer != nil {
		o.orbHideTimer.Stop()
		o.orbHideTimer = nil
	}
}
