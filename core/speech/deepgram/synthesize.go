package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lunavoice/luna/core/speech"
)

const synthesisReadChunkSize = 4096

// Synthesize renders text through the speak endpoint and streams the
// encoded audio (MP3) back. Chunks are forwarded to the audio callback
// as they arrive; the full clip is returned once the body is drained.
func (p *Provider) Synthesize(ctx context.Context, text string, opts ...speech.SynthesizeOption) ([]byte, error) {
	options := speech.SynthesizeOptions{Voice: p.voice}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Voice == "" {
		options.Voice = p.voice
	}

	ctx, span := tracer.Start(ctx, "synthesize")
	defer span.End()

	speakURL, err := url.Parse(p.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}
	queryParams := speakURL.Query()
	queryParams.Set("model", options.Voice)
	queryParams.Set("encoding", "mp3")
	speakURL.RawQuery = queryParams.Encode()

	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode synthesis request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, speakURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesis request: %w", err)
	}
	request.Header.Set("Authorization", "Token "+p.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := p.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, fmt.Errorf("synthesis request failed with status %d: %s", response.StatusCode, detail)
	}

	var combined []byte
	buffer := make([]byte, synthesisReadChunkSize)
	for {
		n, readErr := response.Body.Read(buffer)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			combined = append(combined, chunk...)
			if options.AudioChunkCallback != nil {
				options.AudioChunkCallback(chunk)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return combined, fmt.Errorf("failed to read synthesis response: %w", readErr)
		}
	}

	return combined, nil
}
