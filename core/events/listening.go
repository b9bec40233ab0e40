package events

const (
	KindListeningStarted Kind = "listening.started"
	KindListeningStopped Kind = "listening.stopped"
)

type ListeningStarted struct {
	Base
	SessionID string
}

func NewListeningStarted(sessionID string) ListeningStarted {
	return ListeningStarted{Base: NewBase(KindListeningStarted), SessionID: sessionID}
}

type ListeningStopped struct {
	Base
	SessionID string
}

func NewListeningStopped(sessionID string) ListeningStopped {
	return ListeningStopped{Base: NewBase(KindListeningStopped), SessionID: sessionID}
}
