package events

import (
	"errors"
	"testing"
)

func TestDecodeKnownPayloads(t *testing.T) {
	cases := []struct {
		name string
		data map[string]any
	}{
		{ResponseScreen, map[string]any{"responseId": "r-1"}},
		{ResponseScreenNew, map[string]any{"vacancyId": "v-1"}},
		{ResponseScreenBatch, map[string]any{"vacancyId": "v-1", "responseIds": []any{"r-1", "r-2"}}},
		{CandidateWelcomeSend, map[string]any{"responseId": "r-1"}},
		{VacancyUpdateActive, map[string]any{}},
		{IntegrationVerify, map[string]any{"integrationId": "i-1"}},
		{TelegramVoiceTranscribe, map[string]any{"messageId": "m-1", "fileKey": "voice/1/a.ogg"}},
		{TelegramInterviewNextQuestion, map[string]any{"conversationId": "c-1", "question": 2}},
		{TelegramAuthError, map[string]any{"detail": "401 unauthorized"}},
	}
	for _, tc := range cases {
		if _, err := Decode(tc.name, tc.data); err != nil {
			t.Errorf("%s: %v", tc.name, err)
		}
	}
}

func TestDecodeRejectsUnknownName(t *testing.T) {
	_, err := Decode("no/such.event", map[string]any{})
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestDecodeRejectsInvalidPayloads(t *testing.T) {
	cases := []struct {
		name string
		data map[string]any
	}{
		{ResponseScreen, map[string]any{}},
		{ResponseScreenBatch, map[string]any{"vacancyId": "v-1", "responseIds": []any{}}},
		{TelegramVoiceTranscribe, map[string]any{"messageId": "m-1"}},
		{TelegramInterviewNextQuestion, map[string]any{"conversationId": "c-1", "question": 0}},
		{TelegramAuthError, map[string]any{}},
	}
	for _, tc := range cases {
		_, err := Decode(tc.name, tc.data)
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	data, err := Encode(&VoiceTranscribePayload{MessageID: "m-1", FileKey: "voice/1/a.ogg"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p, err := Decode(TelegramVoiceTranscribe, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	typed, ok := p.(*VoiceTranscribePayload)
	if !ok || typed.MessageID != "m-1" || typed.FileKey != "voice/1/a.ogg" {
		t.Fatalf("round trip mismatch: %#v", p)
	}
}

func TestEveryNameHasRegisteredPayload(t *testing.T) {
	for _, name := range Names() {
		if !Known(name) {
			t.Fatalf("%s reported unknown", name)
		}
	}
	if len(Names()) != 18 {
		t.Fatalf("expected 18 registered events, got %d", len(Names()))
	}
}
