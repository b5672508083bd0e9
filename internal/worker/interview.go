package worker

import (
	"context"
	"fmt"
	"log"

	"interview-orchestrator/internal/ai"
	"interview-orchestrator/internal/bot"
	"interview-orchestrator/internal/config"
	"interview-orchestrator/internal/dispatch"
	"interview-orchestrator/internal/events"
	"interview-orchestrator/internal/models"
	"interview-orchestrator/internal/store"
)

// InterviewHandler covers the conversation-side events: final analysis,
// closing out a finished interview, pushing the next question, and
// surfacing auth failures to the admin chat.
type InterviewHandler struct {
	cfg     config.Config
	store   *store.Store
	ai      *ai.Client
	sender  *bot.Sender
	emitter *dispatch.Emitter
}

func NewInterviewHandler(cfg config.Config, st *store.Store, client *ai.Client, sender *bot.Sender, emitter *dispatch.Emitter) *InterviewHandler {
	return &InterviewHandler{cfg: cfg, store: st, ai: client, sender: sender, emitter: emitter}
}

// HandleAnalyze summarizes a completed interview. Transcriptions arrive
// asynchronously, so when fewer transcripts exist than recorded answers the
// handler fails and lets the retry backoff act as the wait.
func (h *InterviewHandler) HandleAnalyze(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.ConversationPayload](event)
	if err != nil {
		return err
	}

	conv, err := h.store.GetConversation(ctx, payload.ConversationID)
	if err != nil {
		return err
	}

	messages, err := h.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return err
	}
	var answers []string
	for _, msg := range messages {
		if msg.Sender != models.SenderCandidate || msg.ContentType != models.ContentVoice {
			continue
		}
		if msg.Transcription != nil {
			answers = append(answers, *msg.Transcription)
		}
	}
	if len(answers) < conv.Progress.Answered() {
		return fmt.Errorf("analysis: %d of %d transcriptions ready", len(answers), conv.Progress.Answered())
	}

	name := ""
	if conv.CandidateName != nil {
		name = *conv.CandidateName
	}
	analysis, err := h.ai.AnalyzeInterview(ctx, name, answers)
	if err != nil {
		return err
	}
	if err := h.store.SetConversationAnalysis(ctx, conv.ID, analysis); err != nil {
		return err
	}

	_, err = h.emitter.EmitWith(ctx, events.TelegramInterviewComplete,
		&events.ConversationPayload{ConversationID: conv.ID},
		dispatch.Options{Tenant: event.Tenant})
	return err
}

// HandleComplete closes the conversation and tells the admin chat the
// interview is ready for review.
func (h *InterviewHandler) HandleComplete(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.ConversationPayload](event)
	if err != nil {
		return err
	}

	conv, err := h.store.GetConversation(ctx, payload.ConversationID)
	if err != nil {
		return err
	}
	if err := h.store.SetConversationStatus(ctx, conv.ID, models.ConversationClosed); err != nil {
		return err
	}

	if h.cfg.AdminChatID != 0 {
		name := "candidate"
		if conv.CandidateName != nil {
			name = *conv.CandidateName
		}
		note := fmt.Sprintf("Interview with %s finished (%d answers). Analysis is ready.", name, conv.Progress.Answered())
		if err := h.sender.SendText(ctx, h.cfg.AdminChatID, note); err != nil {
			log.Printf("interview: admin notify: %v", err)
		}
	}
	return nil
}

// HandleNextQuestion delivers a question to the candidate and records the
// bot's side of the exchange.
func (h *InterviewHandler) HandleNextQuestion(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.NextQuestionPayload](event)
	if err != nil {
		return err
	}

	conv, err := h.store.GetConversation(ctx, payload.ConversationID)
	if err != nil {
		return err
	}
	if conv.Status != models.ConversationActive {
		log.Printf("interview: conversation %s is %s, dropping question", conv.ID, conv.Status)
		return nil
	}

	text := bot.QuestionText(payload.Question, conv.Progress.TotalQuestions)
	if err := h.sender.SendText(ctx, conv.ExternalChatID, text); err != nil {
		return err
	}
	_, err = h.store.AppendMessage(ctx, store.AppendMessageParams{
		ConversationID: conv.ID,
		Sender:         models.SenderBot,
		ContentType:    models.ContentText,
		Content:        text,
	})
	return err
}

// HandleAuthError alerts the admin chat about a Telegram auth failure.
func (h *InterviewHandler) HandleAuthError(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.AuthErrorPayload](event)
	if err != nil {
		return err
	}
	log.Printf("interview: telegram auth error: %s", payload.Detail)
	if h.cfg.AdminChatID == 0 {
		return nil
	}
	return h.sender.SendText(ctx, h.cfg.AdminChatID, "Telegram bot authorization failed: "+payload.Detail)
}
