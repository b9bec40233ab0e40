package orchestration

import "strings"

// speechChunkBudget is the per-request character ceiling for synthesis.
// Longer responses are split at sentence boundaries so each request
// sounds natural on its own.
const speechChunkBudget = 280

// splitSpeechText cuts text into chunks of at most speechChunkBudget
// characters. Cut preference within the budget: the last sentence
// terminator followed by a space (or end of text), then the last space,
// then a hard cut. Separating spaces are dropped from the chunks;
// rejoining the chunks with single spaces reproduces the original text.
func splitSpeechText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []string
	for len(runes) > speechChunkBudget {
		cut, skip := findSpeechCut(runes)
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut+skip:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// findSpeechCut returns the chunk length and the number of separator
// runes to discard after it. Only called with more runes than the
// budget, so peeking one rune past it is safe.
func findSpeechCut(runes []rune) (cut, skip int) {
	lastSpace := -1
	lastSentenceEnd := -1
	for i := 0; i < speechChunkBudget; i++ {
		if runes[i] != ' ' {
			continue
		}
		lastSpace = i
		if i > 0 && isSentenceTerminator(runes[i-1]) {
			lastSentenceEnd = i - 1
		}
	}
	// A sentence ending exactly on the budget, with its separator just
	// past it, still gets the preferred cut.
	if isSentenceTerminator(runes[speechChunkBudget-1]) && runes[speechChunkBudget] == ' ' {
		lastSentenceEnd = speechChunkBudget - 1
	}

	if lastSentenceEnd >= 0 {
		return lastSentenceEnd + 1, 1
	}
	if lastSpace > 0 {
		return lastSpace, 1
	}
	return speechChunkBudget, 0
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
