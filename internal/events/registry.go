package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names accepted by the bus. Every name maps to exactly one payload type.
const (
	CandidateWelcomeSend  = "candidate/welcome.send"
	CandidateWelcomeBatch = "candidate/welcome.batch"

	ResponseScreen      = "response/screen"
	ResponseScreenNew   = "response/screen.new"
	ResponseScreenAll   = "response/screen.all"
	ResponseScreenBatch = "response/screen.batch"

	ResumeParseNew     = "resume/parse.new"
	ResumeParseMissing = "resume/parse.missing"

	VacancyUpdate              = "vacancy/update"
	VacancyUpdateActive        = "vacancy/update.active"
	VacancyResponsesRefresh    = "vacancy/responses.refresh"
	VacancyExtractRequirements = "vacancy/requirements.extract"

	IntegrationVerify = "integration/credentials.verify"

	TelegramVoiceTranscribe       = "telegram/voice.transcribe"
	TelegramInterviewAnalyze      = "telegram/interview.analyze"
	TelegramInterviewComplete     = "telegram/interview.complete"
	TelegramInterviewNextQuestion = "telegram/interview.next-question"
	TelegramAuthError             = "telegram/auth.error"
)

// ErrUnknownEvent is returned for names with no registered payload type.
var ErrUnknownEvent = errors.New("unknown event name")

// ValidationError reports a payload that failed schema validation. It is
// rejected synchronously at emit time and never enqueued.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload for %s: %s", e.Name, e.Reason)
}

// Payload is one variant of the closed event payload union.
type Payload interface {
	Validate() error
}

var registry = map[string]func() Payload{
	CandidateWelcomeSend:  func() Payload { return &WelcomeSendPayload{} },
	CandidateWelcomeBatch: func() Payload { return &VacancyScopedPayload{} },

	ResponseScreen:      func() Payload { return &ResponsePayload{} },
	ResponseScreenNew:   func() Payload { return &VacancyScopedPayload{} },
	ResponseScreenAll:   func() Payload { return &VacancyScopedPayload{} },
	ResponseScreenBatch: func() Payload { return &ResponseBatchPayload{} },

	ResumeParseNew:     func() Payload { return &VacancyScopedPayload{} },
	ResumeParseMissing: func() Payload { return &VacancyScopedPayload{} },

	VacancyUpdate:              func() Payload { return &VacancyScopedPayload{} },
	VacancyUpdateActive:        func() Payload { return &EmptyPayload{} },
	VacancyResponsesRefresh:    func() Payload { return &VacancyScopedPayload{} },
	VacancyExtractRequirements: func() Payload { return &VacancyScopedPayload{} },

	IntegrationVerify: func() Payload { return &IntegrationPayload{} },

	TelegramVoiceTranscribe:       func() Payload { return &VoiceTranscribePayload{} },
	TelegramInterviewAnalyze:      func() Payload { return &ConversationPayload{} },
	TelegramInterviewComplete:     func() Payload { return &ConversationPayload{} },
	TelegramInterviewNextQuestion: func() Payload { return &NextQuestionPayload{} },
	TelegramAuthError:             func() Payload { return &AuthErrorPayload{} },
}

// Known reports whether a payload type is registered for name.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names returns every registered event name.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

// Decode converts a raw payload map into the typed variant registered for
// name and validates it.
func Decode(name string, data map[string]any) (Payload, error) {
	newPayload, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	p := newPayload()
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, &ValidationError{Name: name, Reason: err.Error()}
	}
	if err := p.Validate(); err != nil {
		return nil, &ValidationError{Name: name, Reason: err.Error()}
	}
	return p, nil
}

// Validate checks a raw payload against the schema bound to name.
func Validate(name string, data map[string]any) error {
	_, err := Decode(name, data)
	return err
}

// Encode turns a typed payload back into the raw map form stored on the event row.
func Encode(p Payload) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return out, nil
}
