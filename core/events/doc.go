// Package events defines the typed orchestration event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - listening.*
//   - processing.*
//   - speech.*
//   - response.*
//   - conversation.*
//   - orb.*
//   - error.*
//
// listening events
//
//   - ListeningStarted (listening.started): microphone capture began for a
//     new turn.
//   - ListeningStopped (listening.stopped): microphone capture ended.
//
// processing events
//
//   - ProcessingStarted (processing.started): a final transcript was
//     received and the turn moved on to dispatch; carries the transcript.
//
// speech events
//
//   - SpeechChunk (speech.chunk): one slice of synthesized audio in stream
//     order; carries the encoded bytes and a per-response ordinal.
//   - SpeechStreamEnded (speech.stream_ended): synthesis for the current
//     response is complete; carries the total byte count.
//
// response events
//
//   - ResponseFull (response.full): the full assistant response text for
//     the turn.
//
// conversation events
//
//   - ConversationEnded (conversation.ended): the turn finished, cleanly or
//     not; the orchestrator returns to idle.
//   - ConversationReset (conversation.reset): session state was cleared and
//     a new session id generated; carries the new id.
//
// orb events
//
//   - OrbVisibility (orb.visibility): show or hide the orb status surface.
//
// error events
//
//   - ErrorReported (error.reported): a component reported an error through
//     the central reporter; carries the source tag and the error value.
package events
