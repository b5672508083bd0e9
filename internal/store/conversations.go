package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"interview-orchestrator/internal/models"
)

// ErrConversationNotFound signals an inbound message for a chat id with no
// conversation record. Callers instruct the user to (re)start.
var ErrConversationNotFound = errors.New("conversation not found")

// StartConversation upserts the conversation for an external chat id, forcing
// status back to ACTIVE. Calling it twice yields exactly one row. Restarting
// a CLOSED conversation wipes the recorded progress and analysis so the
// candidate interviews from the first question again; restarting an ACTIVE
// one keeps whatever was answered so far.
func (s *Store) StartConversation(ctx context.Context, externalChatID int64, candidateName string, totalQuestions int) (models.Conversation, error) {
	progress := models.ConversationProgress{TotalQuestions: totalQuestions, Answers: []models.AnswerRecord{}}
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("marshal progress: %w", err)
	}

	id := uuid.New().String()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, external_chat_id, candidate_name, status, metadata)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		ON CONFLICT (external_chat_id) DO UPDATE
		SET status = $4,
		    candidate_name = COALESCE(NULLIF($3, ''), conversations.candidate_name),
		    metadata = CASE WHEN conversations.status = $6 THEN EXCLUDED.metadata ELSE conversations.metadata END,
		    analysis = CASE WHEN conversations.status = $6 THEN NULL ELSE conversations.analysis END
		RETURNING id, external_chat_id, candidate_name, status, metadata, analysis, created_at
	`, id, externalChatID, candidateName, models.ConversationActive, progressJSON, models.ConversationClosed)

	return scanConversation(row)
}

// ConversationByChatID loads the conversation for an external chat id.
func (s *Store) ConversationByChatID(ctx context.Context, externalChatID int64) (models.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, external_chat_id, candidate_name, status, metadata, analysis, created_at
		FROM conversations WHERE external_chat_id = $1
	`, externalChatID)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// GetConversation loads a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, external_chat_id, candidate_name, status, metadata, analysis, created_at
		FROM conversations WHERE id = $1
	`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// UpdateProgress persists the conversation's progress blob.
func (s *Store) UpdateProgress(ctx context.Context, conversationID string, progress models.ConversationProgress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE conversations SET metadata = $2 WHERE id = $1
	`, conversationID, progressJSON)
	return err
}

// SetConversationAnalysis stores the interview analysis summary.
func (s *Store) SetConversationAnalysis(ctx context.Context, conversationID, analysis string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations SET analysis = $2 WHERE id = $1
	`, conversationID, analysis)
	return err
}

// SetConversationStatus transitions a conversation between ACTIVE and CLOSED.
func (s *Store) SetConversationStatus(ctx context.Context, conversationID, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations SET status = $2 WHERE id = $1
	`, conversationID, status)
	return err
}

// AppendMessageParams collects inputs for one message row.
type AppendMessageParams struct {
	ConversationID    string
	Sender            string
	ContentType       string
	Content           string
	FileID            string
	VoiceDuration     int
	ExternalMessageID int64
}

// AppendMessage inserts an append-only message row and returns it.
func (s *Store) AppendMessage(ctx context.Context, p AppendMessageParams) (models.Message, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var fileID *string
	if p.FileID != "" {
		fileID = &p.FileID
	}
	var duration *int
	if p.VoiceDuration > 0 {
		duration = &p.VoiceDuration
	}
	var externalID *int64
	if p.ExternalMessageID != 0 {
		externalID = &p.ExternalMessageID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender, content_type, content, file_id, voice_duration, external_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, p.ConversationID, p.Sender, p.ContentType, p.Content, fileID, duration, externalID, now)
	if err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}

	return models.Message{
		ID:                id,
		ConversationID:    p.ConversationID,
		Sender:            p.Sender,
		ContentType:       p.ContentType,
		Content:           p.Content,
		FileID:            fileID,
		VoiceDuration:     duration,
		ExternalMessageID: externalID,
		CreatedAt:         now,
	}, nil
}

// GetMessage fetches one message by id.
func (s *Store) GetMessage(ctx context.Context, id string) (models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, sender, content_type, content, file_id, voice_duration, transcription, external_message_id, created_at
		FROM messages WHERE id = $1
	`, id)
	return scanMessage(row)
}

// ListMessages returns a conversation's messages in receipt order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender, content_type, content, file_id, voice_duration, transcription, external_message_id, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// AttachTranscription stores the derived transcription for a voice message.
// The only mutation allowed on a message after creation.
func (s *Store) AttachTranscription(ctx context.Context, messageID, text string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE messages SET transcription = $2 WHERE id = $1
	`, messageID, text)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (models.Conversation, error) {
	var conv models.Conversation
	var name, analysis pgtype.Text
	var metadataJSON []byte

	if err := row.Scan(&conv.ID, &conv.ExternalChatID, &name, &conv.Status, &metadataJSON, &analysis, &conv.CreatedAt); err != nil {
		return models.Conversation{}, err
	}
	conv.CandidateName = textPtr(name)
	conv.Analysis = textPtr(analysis)
	if err := json.Unmarshal(metadataJSON, &conv.Progress); err != nil {
		return models.Conversation{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	return conv, nil
}

func scanMessage(row rowScanner) (models.Message, error) {
	var msg models.Message
	var fileID, transcription pgtype.Text
	var duration pgtype.Int4
	var externalID pgtype.Int8

	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.Sender, &msg.ContentType, &msg.Content, &fileID, &duration, &transcription, &externalID, &msg.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Message{}, fmt.Errorf("message not found: %w", err)
		}
		return models.Message{}, fmt.Errorf("scan message: %w", err)
	}
	msg.FileID = textPtr(fileID)
	msg.Transcription = textPtr(transcription)
	if duration.Valid {
		d := int(duration.Int32)
		msg.VoiceDuration = &d
	}
	if externalID.Valid {
		v := externalID.Int64
		msg.ExternalMessageID = &v
	}
	return msg, nil
}
