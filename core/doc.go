// Package orchestration sequences one voice-assistant conversation turn:
// microphone capture feeds a backpressure-aware audio stream, the stream
// is uploaded to a speech/NLU provider, the recognized intent runs
// through the command dispatch table, and the response is synthesized
// back chunk by chunk. Every state change is published as a typed event
// on the package's bus so UI surfaces can follow along without being
// wired into the pipeline.
package orchestration
