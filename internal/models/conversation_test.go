package models

import (
	"testing"
	"time"
)

func TestConversationProgress(t *testing.T) {
	p := ConversationProgress{TotalQuestions: 3}

	if p.Complete() {
		t.Fatalf("empty progress must not be complete")
	}
	if p.Remaining() != 3 {
		t.Fatalf("expected 3 remaining, got %d", p.Remaining())
	}

	now := time.Now()
	for i := 1; i <= 3; i++ {
		if !p.RecordAnswer("msg", now) {
			t.Fatalf("answer %d should be accepted", i)
		}
		if p.Answered() != i {
			t.Fatalf("expected %d answered, got %d", i, p.Answered())
		}
	}

	if !p.Complete() {
		t.Fatalf("progress should be complete after all answers")
	}
	if p.Remaining() != 0 {
		t.Fatalf("expected 0 remaining, got %d", p.Remaining())
	}
}

func TestRecordAnswerIsBounded(t *testing.T) {
	p := ConversationProgress{TotalQuestions: 1}
	now := time.Now()

	if !p.RecordAnswer("msg-1", now) {
		t.Fatalf("first answer should be accepted")
	}
	if p.RecordAnswer("msg-2", now) {
		t.Fatalf("answer past the total must be rejected")
	}
	if p.Answered() != 1 {
		t.Fatalf("extra answer must not be recorded, got %d", p.Answered())
	}
}

func TestRecordAnswerNumbersQuestions(t *testing.T) {
	p := ConversationProgress{TotalQuestions: 2}
	now := time.Now()
	p.RecordAnswer("msg-1", now)
	p.RecordAnswer("msg-2", now)

	if p.Answers[0].Question != 1 || p.Answers[1].Question != 2 {
		t.Fatalf("answers must be numbered in order: %+v", p.Answers)
	}
}
