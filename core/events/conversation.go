package events

const (
	KindConversationEnded Kind = "conversation.ended"
	KindConversationReset Kind = "conversation.reset"
)

type ConversationEnded struct {
	Base
	SessionID string
}

func NewConversationEnded(sessionID string) ConversationEnded {
	return ConversationEnded{Base: NewBase(KindConversationEnded), SessionID: sessionID}
}

// ConversationReset announces that session state was cleared. SessionID is
// the id of the fresh session, not the one that was discarded.
type ConversationReset struct {
	Base
	SessionID string
}

func NewConversationReset(sessionID string) ConversationReset {
	return ConversationReset{Base: NewBase(KindConversationReset), SessionID: sessionID}
}
