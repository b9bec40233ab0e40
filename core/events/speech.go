package events

const (
	KindSpeechChunk       Kind = "speech.chunk"
	KindSpeechStreamEnded Kind = "speech.stream_ended"
)

// SpeechChunk carries one slice of synthesized audio. Audio is passed
// through as-is (no defensive copy); subscribers that retain it must copy.
type SpeechChunk struct {
	Base
	Audio   []byte
	Ordinal int
}

func NewSpeechChunk(audio []byte, ordinal int) SpeechChunk {
	return SpeechChunk{Base: NewBase(KindSpeechChunk), Audio: audio, Ordinal: ordinal}
}

type SpeechStreamEnded struct {
	Base
	TotalBytes int
}

func NewSpeechStreamEnded(totalBytes int) SpeechStreamEnded {
	return SpeechStreamEnded{Base: NewBase(KindSpeechStreamEnded), TotalBytes: totalBytes}
}
