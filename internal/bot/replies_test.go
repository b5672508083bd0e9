package bot

import (
	"strings"
	"testing"
)

func TestQuestionText(t *testing.T) {
	got := QuestionText(1, 5)
	if !strings.HasPrefix(got, "Question 1 of 5:") {
		t.Fatalf("unexpected prefix: %q", got)
	}

	// Numbers past the pool fall back to the generic prompt but keep numbering.
	got = QuestionText(20, 20)
	if !strings.HasPrefix(got, "Question 20 of 20:") {
		t.Fatalf("unexpected prefix for overflow question: %q", got)
	}
}

func TestWelcomeReplyIncludesFirstQuestion(t *testing.T) {
	got := welcomeReply("Alice", 5)
	if !strings.Contains(got, "Hello, Alice") {
		t.Fatalf("expected personalized greeting: %q", got)
	}
	if !strings.Contains(got, "Question 1 of 5:") {
		t.Fatalf("welcome must carry the first question: %q", got)
	}

	anonymous := welcomeReply("", 5)
	if !strings.HasPrefix(anonymous, "Hello!") {
		t.Fatalf("expected generic greeting: %q", anonymous)
	}
}

func TestRemainingReplyAdvancesQuestion(t *testing.T) {
	got := remainingReply(3, 5)
	if !strings.Contains(got, "Answer 2 of 5 received") {
		t.Fatalf("unexpected progress line: %q", got)
	}
	if !strings.Contains(got, "Question 3 of 5:") {
		t.Fatalf("expected next question: %q", got)
	}
}

func TestWelcomeMessageMentionsVacancy(t *testing.T) {
	got := WelcomeMessage("Bob", "Go Developer")
	if !strings.Contains(got, "Hello, Bob") || !strings.Contains(got, `"Go Developer"`) {
		t.Fatalf("unexpected welcome message: %q", got)
	}
}
