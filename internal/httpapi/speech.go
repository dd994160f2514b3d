package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/corvidlabs/interviewsim/internal/observe"
	"github.com/corvidlabs/interviewsim/internal/ratelimit"
	"github.com/corvidlabs/interviewsim/internal/speech"
	"github.com/corvidlabs/interviewsim/pkg/provider/stt"
)

func registerSpeechRoutes(mux *http.ServeMux, d *Deps) {
	mux.HandleFunc("POST /api/speech-to-text", d.submitBatchSTT)
	mux.HandleFunc("GET /api/speech-to-text/status/{task_id}", d.speechTaskStatus)
	mux.HandleFunc("GET /api/speech-to-text/stream", d.streamSTT)
	mux.HandleFunc("POST /api/text-to-speech", d.synthesizeSpeech)
	mux.HandleFunc("POST /api/text-to-speech/stream", d.synthesizeSpeechStream)
	mux.HandleFunc("GET /api/speech/usage-stats", d.speechUsageStats)
}

// writeCapacityExhausted writes the 503 back-pressure response sent when a
// provider slot is unavailable: either up front, before any acquisition is
// attempted, or after an acquisition has timed out.
func writeCapacityExhausted(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusServiceUnavailable, "capacity_exhausted", "provider at capacity, retry later", observe.CorrelationID(r.Context()))
}

func audioConfigFromQuery(r *http.Request) stt.AudioConfig {
	return stt.AudioConfig{
		SampleRate: 16000,
		Channels:   1,
		Language:   r.URL.Query().Get("language"),
	}
}

func (d *Deps) submitBatchSTT(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionIDHeader)

	if !d.Speech.Available(ratelimit.ProviderSTTBatch) {
		writeCapacityExhausted(w, r)
		return
	}

	taskID, err := d.Speech.SubmitBatchTranscription(r.Context(), sessionID, r.Body, audioConfigFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), observe.CorrelationID(r.Context()))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"task_id": taskID, "status": "processing"})
}

func (d *Deps) speechTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "missing task id", observe.CorrelationID(r.Context()))
		return
	}
	rec, err := d.Speech.GetTaskStatus(r.Context(), taskID)
	if err != nil {
		writeError(w, http.StatusNotFound, "task_not_found", err.Error(), observe.CorrelationID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// wsInboundMessage is the client-to-server frame contract for the
// streaming transcription socket: a text frame {"type":"end"} selects
// end-of-stream, other text frames are ignored, and every binary frame is
// treated as a raw audio chunk.
type wsInboundMessage struct {
	Type string `json:"type"`
}

// wsOutboundFrame is the server-to-client frame contract: lifecycle frames
// (connecting, connected, disconnected), transcription events (transcript,
// speech_started, utterance_end, metadata), and a terminal error, each
// tagged by type and stamped.
type wsOutboundFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	IsFinal   *bool  `json:"is_final,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func newFrame(frameType string) wsOutboundFrame {
	return wsOutboundFrame{Type: frameType, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

func frameForEvent(evt stt.Event) wsOutboundFrame {
	frame := newFrame(string(evt.Type))
	switch evt.Type {
	case stt.EventTranscript:
		frame.Text = evt.Text
		isFinal := evt.IsFinal
		frame.IsFinal = &isFinal
	case stt.EventError:
		frame.Error = evt.Err
	}
	return frame
}

func (d *Deps) streamSTT(w http.ResponseWriter, r *http.Request) {
	if !d.Speech.Available(ratelimit.ProviderSTTStream) {
		writeCapacityExhausted(w, r)
		return
	}

	sessionID := r.URL.Query().Get("session_id")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	writeWSJSON(ctx, conn, newFrame("connecting"))

	stream, err := d.Speech.StartStreamingTranscription(ctx, sessionID, audioConfigFromQuery(r))
	if err != nil {
		frame := newFrame("error")
		frame.Error = err.Error()
		writeWSJSON(ctx, conn, frame)
		conn.Close(websocket.StatusInternalError, "could not start transcription")
		return
	}
	writeWSJSON(ctx, conn, newFrame("connected"))

	done := make(chan struct{})
	go relayEvents(ctx, conn, stream, done)

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			_ = stream.Close(ctx, nil)
			<-done
			return
		}
		if msgType == websocket.MessageText {
			var in wsInboundMessage
			if json.Unmarshal(data, &in) == nil && in.Type == "end" {
				_ = stream.Close(ctx, nil)
				<-done
				writeWSJSON(ctx, conn, newFrame("disconnected"))
				return
			}
			continue
		}
		if err := stream.SendAudio(data); err != nil {
			_ = stream.Close(ctx, err)
			<-done
			return
		}
	}
}

// relayEvents forwards provider transcription events to the client until
// the provider stream's event channel closes.
func relayEvents(ctx context.Context, conn *websocket.Conn, stream *speech.StreamSession, done chan<- struct{}) {
	defer close(done)
	for evt := range stream.Events() {
		writeWSJSON(ctx, conn, frameForEvent(evt))
	}
}

func writeWSJSON(ctx context.Context, conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = conn.Write(ctx, websocket.MessageText, data)
}

type ttsRequest struct {
	Text    string  `json:"text"`
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
}

func (d *Deps) ttsParams(req ttsRequest) (voiceID string, speed float64) {
	voiceID = d.DefaultVoiceID
	if req.VoiceID != "" {
		voiceID = req.VoiceID
	}
	speed = 1.0
	if req.Speed > 0 {
		speed = req.Speed
	}
	return voiceID, speed
}

func (d *Deps) synthesizeSpeech(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body", observe.CorrelationID(r.Context()))
		return
	}
	if !d.Speech.Available(ratelimit.ProviderTTS) {
		writeCapacityExhausted(w, r)
		return
	}

	voiceID, speed := d.ttsParams(req)
	audio, err := d.Speech.SynthesizeSpeech(r.Context(), req.Text, voiceID, speed)
	if err != nil {
		if errors.Is(err, ratelimit.ErrCapacityExhausted) {
			writeCapacityExhausted(w, r)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), observe.CorrelationID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func (d *Deps) synthesizeSpeechStream(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body", observe.CorrelationID(r.Context()))
		return
	}
	if !d.Speech.Available(ratelimit.ProviderTTS) {
		writeCapacityExhausted(w, r)
		return
	}

	voiceID, speed := d.ttsParams(req)
	audioCh, release, err := d.Speech.SynthesizeSpeechStream(r.Context(), req.Text, voiceID, speed)
	if err != nil {
		if errors.Is(err, ratelimit.ErrCapacityExhausted) {
			writeCapacityExhausted(w, r)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), observe.CorrelationID(r.Context()))
		return
	}
	defer release()

	w.Header().Set("Content-Type", "audio/mpeg")
	flusher, _ := w.(http.Flusher)
	w.WriteHeader(http.StatusOK)
	for chunk := range audioCh {
		if _, err := w.Write(chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (d *Deps) speechUsageStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rate_limits": d.Governor.Stats()})
}
