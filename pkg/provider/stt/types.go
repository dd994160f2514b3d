package stt

import "time"

// AudioConfig describes the audio a caller is about to submit, batch or
// streamed. Zero values let the provider pick its defaults.
type AudioConfig struct {
	// SampleRate in Hz. Common values: 16000 (mono speech), 48000
	// (browser microphone capture).
	SampleRate int

	// Channels is the channel count; 1 for mono.
	Channels int

	// Language is the BCP-47 tag for recognition (e.g. "en-US"). Empty
	// lets the provider auto-detect when supported.
	Language string
}

// Result is the outcome of a batch transcription.
type Result struct {
	// Text is the full transcript.
	Text string

	// Confidence is the overall score in [0.0, 1.0]; zero when the
	// provider does not report one.
	Confidence float64

	// Language is the language the provider recognized, when reported.
	Language string

	// Duration is the length of the submitted audio.
	Duration time.Duration
}

// EventType tags a streaming transcription event. The values match the
// frame vocabulary relayed to WebSocket clients.
type EventType string

const (
	// EventTranscript carries recognized text, interim or final.
	EventTranscript EventType = "transcript"

	// EventSpeechStarted signals the provider detected the start of speech.
	EventSpeechStarted EventType = "speech_started"

	// EventUtteranceEnd signals the provider decided an utterance is over.
	EventUtteranceEnd EventType = "utterance_end"

	// EventMetadata carries provider session metadata, typically emitted
	// once when the stream winds down.
	EventMetadata EventType = "metadata"

	// EventError reports a provider-side failure. The stream ends after it.
	EventError EventType = "error"
)

// Event is one message from an open transcription stream.
type Event struct {
	Type EventType

	// Text is the recognized speech for EventTranscript events.
	Text string

	// IsFinal marks an authoritative transcript, as opposed to an interim
	// guess that a later event may revise.
	IsFinal bool

	// Confidence is the transcript confidence in [0.0, 1.0], when reported.
	Confidence float64

	// Err holds the provider's failure message for EventError events.
	Err string
}
