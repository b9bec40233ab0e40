package events

const KindResponseFull Kind = "response.full"

type ResponseFull struct {
	Base
	Text string
}

func NewResponseFull(text string) ResponseFull {
	return ResponseFull{Base: NewBase(KindResponseFull), Text: text}
}
