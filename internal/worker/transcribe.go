package worker

import (
	"context"
	"log"
	"path"

	"interview-orchestrator/internal/ai"
	"interview-orchestrator/internal/events"
	"interview-orchestrator/internal/models"
	"interview-orchestrator/internal/storage"
	"interview-orchestrator/internal/store"
)

// TranscribeHandler turns stored voice recordings into text on the
// message row. A message that already carries a transcription is left
// alone, so redelivered events are harmless.
type TranscribeHandler struct {
	store  *store.Store
	voices storage.Store
	ai     *ai.Client
}

func NewTranscribeHandler(st *store.Store, voices storage.Store, client *ai.Client) *TranscribeHandler {
	return &TranscribeHandler{store: st, voices: voices, ai: client}
}

func (h *TranscribeHandler) Handle(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.VoiceTranscribePayload](event)
	if err != nil {
		return err
	}

	msg, err := h.store.GetMessage(ctx, payload.MessageID)
	if err != nil {
		return err
	}
	if msg.Transcription != nil {
		log.Printf("transcribe: message %s already transcribed, skipping", msg.ID)
		return nil
	}

	audio, err := h.voices.Fetch(ctx, payload.FileKey)
	if err != nil {
		return err
	}

	text, err := h.ai.Transcribe(ctx, path.Base(payload.FileKey), audio)
	if err != nil {
		return err
	}
	return h.store.AttachTranscription(ctx, msg.ID, text)
}
