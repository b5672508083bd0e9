package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"interview-orchestrator/internal/config"
	"interview-orchestrator/internal/dispatch"
	"interview-orchestrator/internal/events"
	"interview-orchestrator/internal/leader"
	"interview-orchestrator/internal/models"
	"interview-orchestrator/internal/storage"
	"interview-orchestrator/internal/store"
	"interview-orchestrator/internal/telemetry"
)

// Bot is the inbound update consumer for the candidate interview flow. Every
// replica runs the long-poll loop, but only the replica holding the leader
// lock acts on updates, so conversation state has a single writer.
type Bot struct {
	cfg        config.Config
	api        *telego.Bot
	store      *store.Store
	voices     storage.Store
	emitter    *dispatch.Emitter
	elector    *leader.Elector
	httpClient *http.Client
}

// New builds the bot against its collaborators.
func New(cfg config.Config, st *store.Store, voices storage.Store, emitter *dispatch.Emitter, elector *leader.Elector) (*Bot, error) {
	api, err := telego.NewBot(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	timeout := cfg.VoiceDownloadTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Bot{
		cfg:        cfg,
		api:        api,
		store:      st,
		voices:     voices,
		emitter:    emitter,
		elector:    elector,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Run consumes updates via long polling until context cancellation. Updates
// arriving while this replica is a follower are skipped; Telegram redelivers
// unconfirmed updates to whichever replica polls next.
func (b *Bot) Run(ctx context.Context) error {
	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{Timeout: 30})
	if err != nil {
		if isAuthError(err) {
			b.reportAuthError(ctx, err)
		}
		return fmt.Errorf("start long polling: %w", err)
	}
	log.Printf("bot: long polling started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errors.New("updates channel closed")
			}
			if update.Message == nil {
				continue
			}
			if !b.elector.IsLeader() {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *telego.Message) {
	chatID := message.Chat.ID

	switch {
	case strings.HasPrefix(message.Text, "/start"):
		telemetry.InboundMessages.WithLabelValues("start").Inc()
		b.onStart(ctx, message)
	case message.Voice != nil:
		telemetry.InboundMessages.WithLabelValues("voice").Inc()
		b.onVoiceMessage(ctx, message)
	case message.Text != "":
		telemetry.InboundMessages.WithLabelValues("text").Inc()
		b.onTextMessage(ctx, message)
	default:
		// Photos, stickers, etc. are outside the interview flow.
		b.reply(ctx, chatID, textStoredReply)
	}
}

// onStart idempotently upserts the conversation and reactivates it if closed.
func (b *Bot) onStart(ctx context.Context, message *telego.Message) {
	chatID := message.Chat.ID
	name := ""
	if message.From != nil {
		name = strings.TrimSpace(message.From.FirstName + " " + message.From.LastName)
	}

	conv, err := b.store.StartConversation(ctx, chatID, name, b.cfg.InterviewQuestions)
	if err != nil {
		log.Printf("bot: start conversation chat=%d: %v", chatID, err)
		b.reply(ctx, chatID, errorReply)
		return
	}

	b.reply(ctx, chatID, welcomeReply(name, conv.Progress.TotalQuestions))
	b.appendBotMessage(ctx, conv.ID, welcomeReply(name, conv.Progress.TotalQuestions))
}

func (b *Bot) onTextMessage(ctx context.Context, message *telego.Message) {
	chatID := message.Chat.ID
	conv, err := b.store.ConversationByChatID(ctx, chatID)
	if errors.Is(err, store.ErrConversationNotFound) {
		b.reply(ctx, chatID, restartReply)
		return
	}
	if err != nil {
		log.Printf("bot: load conversation chat=%d: %v", chatID, err)
		b.reply(ctx, chatID, errorReply)
		return
	}

	_, err = b.store.AppendMessage(ctx, store.AppendMessageParams{
		ConversationID:    conv.ID,
		Sender:            models.SenderCandidate,
		ContentType:       models.ContentText,
		Content:           message.Text,
		ExternalMessageID: int64(message.MessageID),
	})
	if err != nil {
		log.Printf("bot: append text message chat=%d: %v", chatID, err)
		b.reply(ctx, chatID, errorReply)
		return
	}

	// Text does not advance interview progress; answers are voice messages.
	b.reply(ctx, chatID, textStoredReply)
}

// onVoiceMessage stores the recording, appends the message row, emits the
// transcription event, then advances progress. The storage upload and message
// row land before the counter moves, so progress never outruns persisted
// evidence; failures after the row is stored reply an error without rollback.
func (b *Bot) onVoiceMessage(ctx context.Context, message *telego.Message) {
	chatID := message.Chat.ID
	conv, err := b.store.ConversationByChatID(ctx, chatID)
	if errors.Is(err, store.ErrConversationNotFound) {
		b.reply(ctx, chatID, restartReply)
		return
	}
	if err != nil {
		log.Printf("bot: load conversation chat=%d: %v", chatID, err)
		b.reply(ctx, chatID, errorReply)
		return
	}

	audio, err := b.downloadVoice(ctx, message.Voice.FileID)
	if err != nil {
		if isAuthError(err) {
			b.reportAuthError(ctx, err)
		}
		log.Printf("bot: download voice chat=%d: %v", chatID, err)
		b.reply(ctx, chatID, errorReply)
		return
	}

	fileKey := storage.VoiceKey(chatID, int64(message.MessageID), time.Now())
	if _, err := b.voices.Upload(ctx, fileKey, audio, "audio/ogg"); err != nil {
		log.Printf("bot: store voice chat=%d: %v", chatID, err)
		b.reply(ctx, chatID, errorReply)
		return
	}

	msg, err := b.store.AppendMessage(ctx, store.AppendMessageParams{
		ConversationID:    conv.ID,
		Sender:            models.SenderCandidate,
		ContentType:       models.ContentVoice,
		Content:           message.Caption,
		FileID:            fileKey,
		VoiceDuration:     message.Voice.Duration,
		ExternalMessageID: int64(message.MessageID),
	})
	if err != nil {
		log.Printf("bot: append voice message chat=%d: %v", chatID, err)
		b.reply(ctx, chatID, errorReply)
		return
	}

	// Transcription is never performed inline.
	if _, err := b.emitter.Emit(ctx, events.TelegramVoiceTranscribe, &events.VoiceTranscribePayload{
		MessageID: msg.ID,
		FileKey:   fileKey,
	}); err != nil {
		log.Printf("bot: emit transcribe chat=%d: %v", chatID, err)
		b.reply(ctx, chatID, errorReply)
		return
	}

	if conv.Progress.TotalQuestions <= 0 {
		b.reply(ctx, chatID, "Voice message received, thank you.")
		return
	}

	progress := conv.Progress
	if progress.RecordAnswer(msg.ID, msg.CreatedAt) {
		if err := b.store.UpdateProgress(ctx, conv.ID, progress); err != nil {
			log.Printf("bot: update progress chat=%d: %v", chatID, err)
			b.reply(ctx, chatID, errorReply)
			return
		}
	}

	if progress.Complete() {
		b.reply(ctx, chatID, completionReply)
		b.appendBotMessage(ctx, conv.ID, completionReply)
		if _, err := b.emitter.Emit(ctx, events.TelegramInterviewAnalyze, &events.ConversationPayload{
			ConversationID: conv.ID,
		}); err != nil {
			log.Printf("bot: emit interview analysis conv=%s: %v", conv.ID, err)
		}
		return
	}

	reply := remainingReply(progress.Remaining(), progress.TotalQuestions)
	b.reply(ctx, chatID, reply)
	b.appendBotMessage(ctx, conv.ID, reply)
}

// downloadVoice fetches the voice payload through the bot file API, bounded
// by the configured size limit.
func (b *Bot) downloadVoice(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if file.FilePath == "" {
		return nil, errors.New("file has no download path")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.api.FileDownloadURL(file.FilePath), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download voice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("download voice: status %d", resp.StatusCode)
	}

	limit := b.cfg.VoiceMaxBytes
	if limit == 0 {
		limit = 20 * 1024 * 1024
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read voice: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("voice file too large (>%d bytes)", limit)
	}
	return body, nil
}

func (b *Bot) appendBotMessage(ctx context.Context, conversationID, text string) {
	if _, err := b.store.AppendMessage(ctx, store.AppendMessageParams{
		ConversationID: conversationID,
		Sender:         models.SenderBot,
		ContentType:    models.ContentText,
		Content:        text,
	}); err != nil {
		log.Printf("bot: append bot message conv=%s: %v", conversationID, err)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.Printf("bot: send reply chat=%d: %v", chatID, err)
	}
}

func (b *Bot) reportAuthError(ctx context.Context, cause error) {
	if _, err := b.emitter.Emit(ctx, events.TelegramAuthError, &events.AuthErrorPayload{
		Detail: cause.Error(),
	}); err != nil {
		log.Printf("bot: emit auth error: %v", err)
	}
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "401") || strings.Contains(msg, "Unauthorized")
}
