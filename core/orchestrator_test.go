package orchestration

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lunavoice/luna/core/audio"
	"github.com/lunavoice/luna/core/events"
	"github.com/lunavoice/luna/core/speech"
)

type fakeProvider struct {
	mu sync.Mutex

	transcript  string
	result      *speech.ConversationResult
	converseErr error
	synthErr    error

	bytesReceived   int
	lastContentType string
	synthesized     []string

	block        chan struct{}
	synthBlock   chan struct{}
	synthStarted chan struct{}
}

func (f *fakeProvider) Converse(_ context.Context, request speech.ConversationRequest, opts ...speech.ConversationOption) (*speech.ConversationResult, error) {
	options := speech.ConversationOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	data, err := io.ReadAll(request.Audio)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.bytesReceived += len(data)
	f.lastContentType = request.ContentType
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.converseErr != nil {
		return nil, f.converseErr
	}

	if options.TranscriptionCallback != nil {
		options.TranscriptionCallback(f.transcript)
	}

	if f.result != nil {
		return f.result, nil
	}
	return &speech.ConversationResult{Transcript: f.transcript}, nil
}

func (f *fakeProvider) Synthesize(_ context.Context, text string, opts ...speech.SynthesizeOption) ([]byte, error) {
	f.mu.Lock()
	f.synthesized = append(f.synthesized, text)
	synthStarted := f.synthStarted
	synthBlock := f.synthBlock
	f.mu.Unlock()

	if synthStarted != nil {
		select {
		case synthStarted <- struct{}{}:
		default:
		}
	}
	if synthBlock != nil {
		<-synthBlock
	}

	if f.synthErr != nil {
		return nil, f.synthErr
	}

	options := speech.SynthesizeOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	clip := []byte{0xF0, 0x0D}
	if options.AudioChunkCallback != nil {
		options.AudioChunkCallback(clip)
	}
	return clip, nil
}

func (f *fakeProvider) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bytesReceived
}

func (f *fakeProvider) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.synthesized...)
}

type fakeCapture struct {
	mu      sync.Mutex
	started int
	stopped int
	onAudio func([]byte)
}

func (f *fakeCapture) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	f.onAudio = onAudio
	return nil
}

func (f *fakeCapture) StopCapture() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeCapture) Close() {}

func (f *fakeCapture) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (f *fakeCapture) push(frame []byte) {
	f.mu.Lock()
	onAudio := f.onAudio
	f.mu.Unlock()
	if onAudio != nil {
		onAudio(frame)
	}
}

type eventRecorder struct {
	mu    sync.Mutex
	kinds []events.Kind
	texts []string
}

func (r *eventRecorder) record(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, event.Kind())
	if full, ok := event.(events.ResponseFull); ok {
		r.texts = append(r.texts, full.Text)
	}
}

func (r *eventRecorder) seen() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Kind(nil), r.kinds...)
}

func (r *eventRecorder) responses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func indexOf(kinds []events.Kind, kind events.Kind) int {
	for i, k := range kinds {
		if k == kind {
			return i
		}
	}
	return -1
}

func awaitTurnEnd(t *testing.T, orchestrator *Orchestrator) <-chan struct{} {
	t.Helper()
	done := make(chan struct{}, 1)
	orchestrator.Bus().Subscribe(events.KindConversationEnded, func(events.Event) {
		select {
		case done <- struct{}{}:
		default:
		}
	})
	return done
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected turn to finish")
	}
}

func TestOrchestratorHappyTurnEventOrder(t *testing.T) {
	provider := &fakeProvider{
		transcript: "what time is it",
		result: &speech.ConversationResult{
			Transcript: "what time is it",
			Response:   &speech.IntentResponse{Intent: "get_time"},
		},
	}
	table := NewDispatchTable()
	table.Register("get_time", func(_ context.Context, contextMap *ContextMap) (Continuation, error) {
		contextMap.Set(ContextKeySpeech, "It is noon.")
		return Continuation{}, nil
	})

	orchestrator := NewOrchestrator(
		WithSpeechProvider(provider),
		WithDispatchTable(table),
		WithSettleDelay(0),
	)
	defer orchestrator.Close()

	recorder := &eventRecorder{}
	orchestrator.Bus().SubscribeAll(recorder.record)
	done := awaitTurnEnd(t, orchestrator)

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("expected listening to start, got %v", err)
	}
	orchestrator.SendAudioFrame(0, []byte{0x01, 0x02})
	orchestrator.SendAudioFrame(1, []byte{0x03})
	orchestrator.StopListening()
	waitFor(t, done)

	if got := provider.received(); got != 3 {
		t.Fatalf("expected provider to receive 3 audio bytes, got %d", got)
	}

	kinds := recorder.seen()
	started := indexOf(kinds, events.KindListeningStarted)
	stopped := indexOf(kinds, events.KindListeningStopped)
	processing := indexOf(kinds, events.KindProcessingStarted)
	response := indexOf(kinds, events.KindResponseFull)
	chunk := indexOf(kinds, events.KindSpeechChunk)
	streamEnd := indexOf(kinds, events.KindSpeechStreamEnded)
	ended := indexOf(kinds, events.KindConversationEnded)

	for name, index := range map[string]int{
		"listening.started": started, "listening.stopped": stopped,
		"processing.started": processing, "response.full": response,
		"speech.chunk": chunk, "speech.stream_ended": streamEnd,
		"conversation.ended": ended,
	} {
		if index < 0 {
			t.Fatalf("expected %s event, saw %v", name, kinds)
		}
	}
	if !(started < stopped && stopped < ended) {
		t.Fatalf("expected stop-listening before conversation-end, saw %v", kinds)
	}
	if !(processing < response && response < chunk && chunk < streamEnd && streamEnd < ended) {
		t.Fatalf("expected processing, response, audio, end in order, saw %v", kinds)
	}

	if responses := recorder.responses(); len(responses) != 1 || responses[0] != "It is noon." {
		t.Fatalf("expected handler speech in full response, got %v", responses)
	}
	if spoken := provider.spoken(); len(spoken) != 1 || spoken[0] != "It is noon." {
		t.Fatalf("expected handler speech synthesized, got %v", spoken)
	}
}

func TestOrchestratorDropsDuplicateAndOutOfOrderFrames(t *testing.T) {
	provider := &fakeProvider{transcript: "hello"}
	orchestrator := NewOrchestrator(
		WithSpeechProvider(provider),
		WithSettleDelay(0),
	)
	defer orchestrator.Close()
	done := awaitTurnEnd(t, orchestrator)

	// Frames before a turn starts are dropped.
	orchestrator.SendAudioFrame(0, []byte{0xFF})

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("expected listening to start, got %v", err)
	}
	orchestrator.SendAudioFrame(0, []byte{0x01})
	orchestrator.SendAudioFrame(1, []byte{0x02})
	orchestrator.SendAudioFrame(1, []byte{0x03}) // duplicate counter
	orchestrator.SendAudioFrame(0, []byte{0x04}) // decreasing counter
	orchestrator.SendAudioFrame(2, []byte{0x05})
	orchestrator.StopListening()
	waitFor(t, done)

	if got := provider.received(); got != 3 {
		t.Fatalf("expected only strictly increasing frames forwarded, got %d bytes", got)
	}
}

func TestOrchestratorRejectsOverlappingTurns(t *testing.T) {
	provider := &fakeProvider{transcript: "hi"}
	orchestrator := NewOrchestrator(
		WithSpeechProvider(provider),
		WithSettleDelay(0),
	)
	defer orchestrator.Close()
	done := awaitTurnEnd(t, orchestrator)

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("expected first turn to start, got %v", err)
	}
	if err := orchestrator.StartListening(context.Background()); err == nil {
		t.Fatalf("expected overlapping start to be rejected")
	}

	orchestrator.StopListening()
	waitFor(t, done)
}

func TestOrchestratorCaptureClientFramesAreForwarded(t *testing.T) {
	provider := &fakeProvider{transcript: "hello"}
	capture := &fakeCapture{}
	orchestrator := NewOrchestrator(
		WithSpeechProvider(provider),
		WithCaptureClient(capture),
		WithSettleDelay(0),
	)
	defer orchestrator.Close()
	done := awaitTurnEnd(t, orchestrator)

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("expected listening to start, got %v", err)
	}
	capture.push([]byte{0x01, 0x02})
	capture.push([]byte{0x03})
	orchestrator.StopListening()
	waitFor(t, done)

	if got := provider.received(); got != 3 {
		t.Fatalf("expected captured frames forwarded in order, got %d bytes", got)
	}
	capture.mu.Lock()
	started, stopped := capture.started, capture.stopped
	capture.mu.Unlock()
	if started != 1 || stopped == 0 {
		t.Fatalf("expected capture started once and stopped, got started=%d stopped=%d", started, stopped)
	}
	if provider.lastContentType != capture.EncodingInfo().MimeType() {
		t.Fatalf("expected capture encoding on the wire, got %q", provider.lastContentType)
	}
}

func TestOrchestratorHandlerErrorSpeaksSolution(t *testing.T) {
	provider := &fakeProvider{
		transcript: "weather in zagreb",
		result: &speech.ConversationResult{
			Transcript: "weather in zagreb",
			Response:   &speech.IntentResponse{Intent: "get_weather"},
		},
	}
	table := NewDispatchTable()
	table.Register("get_weather", func(_ context.Context, contextMap *ContextMap) (Continuation, error) {
		contextMap.SetError(errors.New("forecast unavailable"), "The weather service is down, try later.")
		return Continuation{}, errors.New("forecast unavailable")
	})

	orchestrator := NewOrchestrator(
		WithSpeechProvider(provider),
		WithDispatchTable(table),
		WithSettleDelay(0),
	)
	defer orchestrator.Close()
	done := awaitTurnEnd(t, orchestrator)

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("expected listening to start, got %v", err)
	}
	orchestrator.StopListening()
	waitFor(t, done)

	spoken := provider.spoken()
	if len(spoken) != 1 || spoken[0] != "The weather service is down, try later." {
		t.Fatalf("expected spoken recovery line, got %v", spoken)
	}
}

func TestOrchestratorUnknownIntentSpeaksFallback(t *testing.T) {
	provider := &fakeProvider{
		transcript: "do something impossible",
		result: &speech.ConversationResult{
			Transcript: "do something impossible",
			Response:   &speech.IntentResponse{Intent: "summon_dragon"},
		},
	}
	orchestrator := NewOrchestrator(
		WithSpeechProvider(provider),
		WithSettleDelay(0),
	)
	defer orchestrator.Close()
	done := awaitTurnEnd(t, orchestrator)

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("expected listening to start, got %v", err)
	}
	orchestrator.StopListening()
	waitFor(t, done)

	spoken := provider.spoken()
	if len(spoken) != 1 || spoken[0] == "" {
		t.Fatalf("expected a spoken fallback for the unknown command, got %v", spoken)
	}
}

func TestOrchestratorProviderFailureSpeaksApology(t *testing.T) {
	provider := &fakeProvider{converseErr: errors.New("upstream hung up")}
	orchestrator := NewOrchestrator(
		WithSpeechProvider(provider),
		WithSettleDelay(0),
		WithApologyText("Apologies, that did not work."),
	)
	defer orchestrator.Close()
	done := awaitTurnEnd(t, orchestrator)

	recorder := &eventRecorder{}
	orchestrator.Bus().SubscribeAll(recorder.record)

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("expected listening to start, got %v", err)
	}
	orchestrator.StopListening()
	waitFor(t, done)

	spoken := provider.spoken()
	if len(spoken) != 1 || spoken[0] != "Apologies, that did not work." {
		t.Fatalf("expected spoken apology, got %v", spoken)
	}

	kinds := recorder.seen()
	if indexOf(kinds, events.KindErrorReported) < 0 {
		t.Fatalf("expected error on the error channel, saw %v", kinds)
	}
	if indexOf(kinds, events.KindConversationEnded) < 0 {
		t.Fatalf("expected turn wound down after failure, saw %v", kinds)
	}
}

func TestOrchestratorResetRegeneratesSessionAndDiscardsStaleResult(t *testing.T) {
	block := make(chan struct{})
	provider := &fakeProvider{
		transcript: "stale",
		block:      block,
		result: &speech.ConversationResult{
			Transcript: "stale",
			Response:   &speech.IntentResponse{Speech: "stale speech"},
		},
	}
	orchestrator := NewOrchestrator(
		WithSpeechProvider(provider),
		WithSettleDelay(0),
	)
	defer orchestrator.Close()

	recorder := &eventRecorder{}
	orchestrator.Bus().SubscribeAll(recorder.record)

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("expected listening to start, got %v", err)
	}
	before := orchestrator.SessionID()
	orchestrator.Context().Set("scratch", "value")
	orchestrator.StopListening()

	orchestrator.Reset()
	after := orchestrator.SessionID()
	if before == after {
		t.Fatalf("expected reset to regenerate the session id")
	}
	if orchestrator.Context().Len() != 0 {
		t.Fatalf("expected reset to clear the context map")
	}

	// Let the in-flight exchange complete; its result must be discarded.
	close(block)
	time.Sleep(50 * time.Millisecond)

	if spoken := provider.spoken(); len(spoken) != 0 {
		t.Fatalf("expected stale result discarded without synthesis, got %v", spoken)
	}
	kinds := recorder.seen()
	if indexOf(kinds, events.KindConversationReset) < 0 {
		t.Fatalf("expected reset event, saw %v", kinds)
	}
	if indexOf(kinds, events.KindConversationEnded) >= 0 {
		t.Fatalf("expected no conversation-end for the abandoned turn, saw %v", kinds)
	}

	// The orchestrator accepts a fresh turn after reset.
	provider.mu.Lock()
	provider.block = nil
	provider.mu.Unlock()
	done := awaitTurnEnd(t, orchestrator)
	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("expected fresh turn after reset, got %v", err)
	}
	orchestrator.StopListening()
	waitFor(t, done)
}

func TestOrchestratorResetStopsInFlightSynthesis(t *testing.T) {
	// Long enough to split into two synthesis chunks.
	reply := strings.Repeat("alpha ", 45) + "one. Second sentence follows."

	synthBlock := make(chan struct{})
	synthStarted := make(chan struct{}, 1)
	provider := &fakeProvider{
		transcript: "tell me everything",
		result: &speech.ConversationResult{
			Transcript: "tell me everything",
			Response:   &speech.IntentResponse{Speech: reply},
		},
		synthBlock:   synthBlock,
		synthStarted: synthStarted,
	}
	orchestrator := NewOrchestrator(
		WithSpeechProvider(provider),
		WithSettleDelay(0),
	)
	defer orchestrator.Close()

	recorder := &eventRecorder{}
	orchestrator.Bus().SubscribeAll(recorder.record)

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("expected listening to start, got %v", err)
	}
	orchestrator.StopListening()

	select {
	case <-synthStarted:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected synthesis to start")
	}

	// Abandon the turn while the first chunk is still being synthesized.
	orchestrator.Reset()
	close(synthBlock)
	time.Sleep(50 * time.Millisecond)

	if spoken := provider.spoken(); len(spoken) != 1 {
		t.Fatalf("expected synthesis stopped after the first chunk, got %d requests", len(spoken))
	}

	kinds := recorder.seen()
	if indexOf(kinds, events.KindConversationReset) < 0 {
		t.Fatalf("expected reset event, saw %v", kinds)
	}
	if indexOf(kinds, events.KindSpeechChunk) >= 0 {
		t.Fatalf("expected no audio published for the abandoned reply, saw %v", kinds)
	}
	if indexOf(kinds, events.KindSpeechStreamEnded) >= 0 {
		t.Fatalf("expected no stream-end for the abandoned reply, saw %v", kinds)
	}
	if indexOf(kinds, events.KindConversationEnded) >= 0 {
		t.Fatalf("expected no conversation-end for the abandoned turn, saw %v", kinds)
	}
}

func TestOrchestratorOrbVisibilityLifecycle(t *testing.T) {
	provider := &fakeProvider{transcript: "hi"}
	orchestrator := NewOrchestrator(
		WithSpeechProvider(provider),
		WithSettleDelay(0),
		WithOrbHideDelay(10*time.Millisecond),
	)
	defer orchestrator.Close()

	var mu sync.Mutex
	var visibility []bool
	orchestrator.Bus().Subscribe(events.KindOrbVisibility, func(event events.Event) {
		mu.Lock()
		defer mu.Unlock()
		visibility = append(visibility, event.(events.OrbVisibility).Visible)
	})
	done := awaitTurnEnd(t, orchestrator)

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("expected listening to start, got %v", err)
	}
	orchestrator.StopListening()
	waitFor(t, done)

	// The hide is delayed past the turn end for the fade-out.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(visibility) != 2 || !visibility[0] || visibility[1] {
		t.Fatalf("expected show then delayed hide, got %v", visibility)
	}
}
