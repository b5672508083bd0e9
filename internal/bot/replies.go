package bot

import (
	"fmt"
)

// Interview question pool. Conversations that outrun the pool fall back to a
// generic prompt.
var interviewQuestions = []string{
	"Tell us briefly about yourself and your background.",
	"Why are you interested in this position?",
	"Describe the most challenging project you have worked on.",
	"What are your strongest professional skills?",
	"Where do you see yourself in three years?",
	"What salary expectations do you have?",
	"When would you be able to start?",
}

// QuestionText returns the prompt for a 1-based question number.
func QuestionText(n, total int) string {
	text := "Please tell us more about your experience."
	if n >= 1 && n <= len(interviewQuestions) {
		text = interviewQuestions[n-1]
	}
	return fmt.Sprintf("Question %d of %d: %s", n, total, text)
}

// WelcomeMessage is the first outreach sent to a candidate through the HR
// board chat, inviting them to the voice interview bot.
func WelcomeMessage(name, vacancyTitle string) string {
	greeting := "Hello"
	if name != "" {
		greeting = "Hello, " + name
	}
	return fmt.Sprintf(
		"%s! Thank you for responding to the %q vacancy. To move forward, please take a short voice interview with our Telegram bot: send it /start and answer a few questions.",
		greeting, vacancyTitle,
	)
}

func welcomeReply(name string, total int) string {
	greeting := "Hello"
	if name != "" {
		greeting = "Hello, " + name
	}
	return fmt.Sprintf(
		"%s! This is a short voice interview: %d questions, answer each with a voice message.\n\n%s",
		greeting, total, QuestionText(1, total),
	)
}

func remainingReply(remaining, total int) string {
	answered := total - remaining
	return fmt.Sprintf(
		"Answer %d of %d received. %d question(s) remaining.\n\n%s",
		answered, total, remaining, QuestionText(answered+1, total),
	)
}

const (
	completionReply = "That was the last question, thank you! We will review your answers and get back to you."
	restartReply    = "I don't have an interview session for this chat. Please send /start to begin."
	textStoredReply = "Noted. Please answer the interview questions with voice messages."
	errorReply      = "Sorry, something went wrong while processing your message. Please try again."
)
