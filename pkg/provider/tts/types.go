package tts

// Request is one synthesis job: an SSML document plus the voice and pace
// to render it with. The SSML is prepared upstream (escaping, leading
// break, prosody wrapper); adapters for engines without SSML support strip
// the markup before submitting.
type Request struct {
	// SSML is the document to synthesize.
	SSML string

	// Voice is the provider-specific voice identifier.
	Voice string

	// Speed is the speaking-rate factor in [0.5, 2.0]; 1.0 is the voice's
	// natural pace. Zero means 1.0.
	Speed float64
}
