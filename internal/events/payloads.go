package events

import (
	"errors"
)

// EmptyPayload is used by events that act on all active entities.
type EmptyPayload struct{}

func (*EmptyPayload) Validate() error { return nil }

// VacancyScopedPayload targets every relevant row under one vacancy.
type VacancyScopedPayload struct {
	VacancyID string `json:"vacancyId"`
}

func (p *VacancyScopedPayload) Validate() error {
	if p.VacancyID == "" {
		return errors.New("vacancyId is required")
	}
	return nil
}

// ResponsePayload targets a single candidate response.
type ResponsePayload struct {
	ResponseID string `json:"responseId"`
}

func (p *ResponsePayload) Validate() error {
	if p.ResponseID == "" {
		return errors.New("responseId is required")
	}
	return nil
}

// ResponseBatchPayload targets an explicit set of responses.
type ResponseBatchPayload struct {
	VacancyID   string   `json:"vacancyId"`
	ResponseIDs []string `json:"responseIds"`
}

func (p *ResponseBatchPayload) Validate() error {
	if p.VacancyID == "" {
		return errors.New("vacancyId is required")
	}
	if len(p.ResponseIDs) == 0 {
		return errors.New("responseIds must not be empty")
	}
	for _, id := range p.ResponseIDs {
		if id == "" {
			return errors.New("responseIds must not contain empty ids")
		}
	}
	return nil
}

// WelcomeSendPayload sends the welcome message to a single response's candidate.
type WelcomeSendPayload struct {
	ResponseID string `json:"responseId"`
}

func (p *WelcomeSendPayload) Validate() error {
	if p.ResponseID == "" {
		return errors.New("responseId is required")
	}
	return nil
}

// IntegrationPayload targets one stored integration credential set.
type IntegrationPayload struct {
	IntegrationID string `json:"integrationId"`
}

func (p *IntegrationPayload) Validate() error {
	if p.IntegrationID == "" {
		return errors.New("integrationId is required")
	}
	return nil
}

// VoiceTranscribePayload asks for async transcription of a stored voice message.
type VoiceTranscribePayload struct {
	MessageID string `json:"messageId"`
	FileKey   string `json:"fileKey"`
}

func (p *VoiceTranscribePayload) Validate() error {
	if p.MessageID == "" {
		return errors.New("messageId is required")
	}
	if p.FileKey == "" {
		return errors.New("fileKey is required")
	}
	return nil
}

// ConversationPayload targets one interview conversation.
type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

func (p *ConversationPayload) Validate() error {
	if p.ConversationID == "" {
		return errors.New("conversationId is required")
	}
	return nil
}

// NextQuestionPayload asks the bot to send the next interview question.
type NextQuestionPayload struct {
	ConversationID string `json:"conversationId"`
	Question       int    `json:"question"`
}

func (p *NextQuestionPayload) Validate() error {
	if p.ConversationID == "" {
		return errors.New("conversationId is required")
	}
	if p.Question <= 0 {
		return errors.New("question must be positive")
	}
	return nil
}

// AuthErrorPayload notifies operators that the bot token was rejected upstream.
type AuthErrorPayload struct {
	Detail string `json:"detail"`
}

func (p *AuthErrorPayload) Validate() error {
	if p.Detail == "" {
		return errors.New("detail is required")
	}
	return nil
}
