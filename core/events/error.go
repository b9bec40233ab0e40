package events

const KindErrorReported Kind = "error.reported"

// ErrorReported is the only event allowed to carry error values across the
// bus. Source identifies the reporting component (e.g. "audiostream",
// "session", "dispatch").
type ErrorReported struct {
	Base
	Source string
	Err    error
}

func NewErrorReported(source string, err error) ErrorReported {
	return ErrorReported{Base: NewBase(KindErrorReported), Source: source, Err: err}
}
