package events

const KindProcessingStarted Kind = "processing.started"

type ProcessingStarted struct {
	Base
	Transcript string
}

func NewProcessingStarted(transcript string) ProcessingStarted {
	return ProcessingStarted{Base: NewBase(KindProcessingStarted), Transcript: transcript}
}
