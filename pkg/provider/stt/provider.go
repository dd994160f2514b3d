// Package stt defines the Provider interface over Speech-to-Text backends.
//
// Two workflows are covered. Transcribe takes a complete, already-buffered
// recording and blocks for the transcript, the shape behind the async
// upload-and-poll task flow. OpenStream holds a live provider connection
// that accepts audio chunks as a client produces them and emits Events as
// the provider recognizes speech, the shape behind the WebSocket endpoint.
//
// Implementations must be safe for concurrent use; many sessions transcribe
// at once and the rate governor, not the provider adapter, bounds that
// concurrency.
package stt

import "context"

// Stream is one open streaming transcription session.
//
// Callers must call Close when done with the stream; Close flushes pending
// audio, ends the provider connection, and eventually closes the Events
// channel. Calling Close more than once is safe.
type Stream interface {
	// Send delivers one chunk of audio to the provider. The bytes must
	// match the AudioConfig the stream was opened with; most providers
	// infer the container format from the data itself. Send after Close
	// returns an error.
	Send(chunk []byte) error

	// Events returns the stream's event channel. It is closed when the
	// provider connection ends, after any final EventMetadata or
	// EventError. Callers must drain it to avoid blocking the provider
	// adapter's internals.
	Events() <-chan Event

	// Close ends the session and releases its resources.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe submits a complete recording and blocks until the
	// provider returns a transcript or ctx is done.
	Transcribe(ctx context.Context, audio []byte, cfg AudioConfig) (*Result, error)

	// OpenStream establishes a live transcription session. The returned
	// Stream is ready to accept audio immediately; the caller owns it and
	// must Close it.
	OpenStream(ctx context.Context, cfg AudioConfig) (Stream, error)
}
