package models

import (
	"time"
)

// Conversation statuses.
const (
	ConversationActive = "ACTIVE"
	ConversationClosed = "CLOSED"
)

// Message senders.
const (
	SenderCandidate = "CANDIDATE"
	SenderAdmin     = "ADMIN"
	SenderBot       = "BOT"
)

// Message content types.
const (
	ContentText  = "TEXT"
	ContentVoice = "VOICE"
)

// Conversation is the persisted thread with one external chat identity.
// Exactly one row exists per ExternalChatID.
type Conversation struct {
	ID             string               `json:"id"`
	ExternalChatID int64                `json:"external_chat_id"`
	CandidateName  *string              `json:"candidate_name,omitempty"`
	Status         string               `json:"status"`
	Progress       ConversationProgress `json:"progress"`
	Analysis       *string              `json:"analysis,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ConversationProgress tracks interview question/answer state. It is stored as
// JSONB but always manipulated through this type in-process.
type ConversationProgress struct {
	TotalQuestions int            `json:"totalQuestions"`
	Answers        []AnswerRecord `json:"questionAnswers"`
}

// AnswerRecord links one answered question to the message carrying the answer.
type AnswerRecord struct {
	Question   int       `json:"question"`
	MessageID  string    `json:"messageId"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// Answered returns how many questions have been answered so far.
func (p ConversationProgress) Answered() int {
	return len(p.Answers)
}

// Remaining returns the number of questions still unanswered.
func (p ConversationProgress) Remaining() int {
	if r := p.TotalQuestions - len(p.Answers); r > 0 {
		return r
	}
	return 0
}

// Complete reports whether every question has an answer.
func (p ConversationProgress) Complete() bool {
	return p.TotalQuestions > 0 && len(p.Answers) >= p.TotalQuestions
}

// RecordAnswer appends an answer for the next question. The count never
// exceeds TotalQuestions; extra answers are ignored and reported false.
func (p *ConversationProgress) RecordAnswer(messageID string, at time.Time) bool {
	if p.TotalQuestions > 0 && len(p.Answers) >= p.TotalQuestions {
		return false
	}
	p.Answers = append(p.Answers, AnswerRecord{
		Question:   len(p.Answers) + 1,
		MessageID:  messageID,
		AnsweredAt: at,
	})
	return true
}

// Message is one inbound or outbound message within a conversation. Rows are
// append-only; only the transcription field is attached after creation.
type Message struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	Sender            string    `json:"sender"`
	ContentType       string    `json:"content_type"`
	Content           string    `json:"content"`
	FileID            *string   `json:"file_id,omitempty"`
	VoiceDuration     *int      `json:"voice_duration,omitempty"`
	Transcription     *string   `json:"transcription,omitempty"`
	ExternalMessageID *int64    `json:"external_message_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
