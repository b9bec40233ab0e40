package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/lunavoice/luna/core/audio"
	"github.com/lunavoice/luna/core/speech"
)

// ErrEmptyTranscription is returned when the exchange produced no speech
// worth acting on. The orchestrator treats it like any other per-turn
// provider failure.
var ErrEmptyTranscription = errors.New("empty transcription")

const (
	uploadChunkSize   = 3200 // 100ms of 16kHz 16-bit mono
	keepAliveInterval = 5 * time.Second
)

// conversation tracks one listen-websocket exchange.
type conversation struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	accumulatedTranscript string
	unendedSegment        bool

	done chan struct{}
}

// Converse uploads the request's audio stream to the listen endpoint
// until EOF, collects the final transcript, and runs the classifier over
// it. The returned context is the request context with the transcript
// folded in.
func (p *Provider) Converse(ctx context.Context, request speech.ConversationRequest, opts ...speech.ConversationOption) (*speech.ConversationResult, error) {
	options := speech.ConversationOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "converse")
	defer span.End()

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := p.dialListen(ctx, *encoding, options)
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}

	conv := &conversation{conn: conn, done: make(chan struct{})}
	go conv.readAndProcessMessages(ctx, options)

	if err := conv.uploadAudio(ctx, request.Audio); err != nil {
		conn.Close()
		<-conv.done
		return nil, fmt.Errorf("failed to upload audio: %w", err)
	}

	select {
	case <-conv.done:
	case <-ctx.Done():
		conn.Close()
		<-conv.done
		return nil, ctx.Err()
	}

	transcript := strings.TrimSpace(conv.accumulatedTranscript)
	if transcript == "" {
		return nil, ErrEmptyTranscription
	}
	if options.TranscriptionCallback != nil {
		options.TranscriptionCallback(transcript)
	}

	result := &speech.ConversationResult{
		Transcript: transcript,
		Context:    updatedContext(request.Context, transcript),
	}

	if p.classifier != nil {
		response, err := p.classifier.Classify(ctx, transcript, request.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to classify transcript: %w", err)
		}
		result.Response = response
	}

	return result, nil
}

func (p *Provider) dialListen(ctx context.Context, encoding encodingInfo, options speech.ConversationOptions) (*websocket.Conn, error) {
	listenURL, err := url.Parse(p.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", "en-US")
	queryParams.Set("smart_format", "true")
	queryParams.Set("endpointing", "300")
	if options.TranscriptionCallback != nil || options.SpeechEndedCallback != nil {
		queryParams.Set("utterance_end_ms", "1000")
		queryParams.Set("interim_results", "true")
	} else if options.InterimTranscriptionCallback != nil {
		queryParams.Set("interim_results", "true")
	}
	if options.SpeechStartedCallback != nil || options.SpeechEndedCallback != nil {
		queryParams.Set("vad_events", "true")
	}
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + p.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

// uploadAudio pulls the orchestrator's audio stream and pushes it over
// the websocket until EOF, then asks the endpoint to close the stream.
// Keepalives cover gaps where the stream has no data yet.
func (c *conversation) uploadAudio(ctx context.Context, audioStream io.Reader) error {
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	go func() {
		for {
			select {
			case <-keepAlive.C:
				c.sendKeepAlive()
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	buffer := make([]byte, uploadChunkSize)
	for {
		n, err := audioStream.Read(buffer)
		if n > 0 {
			if writeErr := c.sendAudio(buffer[:n]); writeErr != nil {
				return writeErr
			}
			keepAlive.Reset(keepAliveInterval)
		}
		if err == io.EOF {
			return c.closeStream()
		}
		if err != nil {
			_ = c.closeStream()
			return err
		}
	}
}

func (c *conversation) sendAudio(audioChunk []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, audioChunk); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (c *conversation) sendKeepAlive() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if err := c.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "KeepAlive"}); err != nil {
		logger.Warn("failed to send keepalive", "error", err)
	}
}

func (c *conversation) closeStream() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if err := c.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

func (c *conversation) readAndProcessMessages(ctx context.Context, options speech.ConversationOptions) {
	defer close(c.done)

	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("failed to read deepgram websocket message", "error", err)
			}
			c.conn.Close()
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		if finished := c.processMessage(ctx, msg, options); finished {
			c.conn.Close()
			return
		}
	}
}

// processMessage handles one text frame. It returns true once the
// endpoint has acknowledged the end of the stream.
func (c *conversation) processMessage(_ context.Context, msg []byte, options speech.ConversationOptions) bool {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return false
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram message", "error", err)
			return false
		}

		if msgResp.IsFinal {
			if len(msgResp.Channel.Alternatives) > 0 {
				transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
				if len(transcript) > 0 {
					c.accumulatedTranscript += " " + transcript
				}
			}
			if msgResp.SpeechFinal {
				c.onSpeechEnded(options)
			}
			return false
		}

		if options.InterimTranscriptionCallback != nil && len(msgResp.Channel.Alternatives) > 0 {
			transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
			if len(transcript) > 0 {
				options.InterimTranscriptionCallback(strings.TrimSpace(c.accumulatedTranscript + " " + transcript))
			}
		}

	case api.TypeUtteranceEndResponse:
		if c.unendedSegment {
			c.onSpeechEnded(options)
		}

	case api.TypeSpeechStartedResponse:
		c.unendedSegment = true
		if options.SpeechStartedCallback != nil {
			options.SpeechStartedCallback()
		}

	case api.TypeMetadataResponse:
		// Metadata arrives after CloseStream; the exchange is over.
		return true
	}

	return false
}

func (c *conversation) onSpeechEnded(options speech.ConversationOptions) {
	c.unendedSegment = false
	if options.SpeechEndedCallback != nil {
		options.SpeechEndedCallback()
	}
}

// updatedContext folds the transcript into the session context so the
// next turn's classifier can resolve follow-up references.
func updatedContext(conversationContext map[string]any, transcript string) map[string]any {
	updated := make(map[string]any, len(conversationContext)+1)
	for key, value := range conversationContext {
		updated[key] = value
	}
	updated["transcript"] = transcript
	return updated
}
