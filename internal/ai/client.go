package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"interview-orchestrator/internal/config"
)

// Client wraps the OpenAI API for the slow AI-bound operations: voice
// transcription, response screening, requirements extraction, and interview
// analysis. All calls are made from job handlers, never inline with a request.
type Client struct {
	api             openai.Client
	chatModel       string
	transcribeModel string
}

// New builds a client from config.
func New(cfg config.Config) *Client {
	return &Client{
		api:             openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey)),
		chatModel:       cfg.ChatModel,
		transcribeModel: cfg.TranscribeModel,
	}
}

// Transcribe converts a stored voice recording to text.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	res, err := c.api.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(c.transcribeModel),
		File:  openai.File(bytes.NewReader(audio), filename, "audio/ogg"),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return res.Text, nil
}

// ScreenResult is the structured outcome of screening one response.
type ScreenResult struct {
	Score   int    `json:"score"`
	Summary string `json:"summary"`
}

// ScreenResponse scores a candidate's resume against a vacancy on a 0-100 scale.
func (c *Client) ScreenResponse(ctx context.Context, vacancyTitle, vacancyDescription, requirements, resumeText string) (ScreenResult, error) {
	prompt := fmt.Sprintf(
		"Vacancy: %s\n\nDescription:\n%s\n\nRequirements:\n%s\n\nCandidate resume:\n%s",
		vacancyTitle, vacancyDescription, requirements, resumeText,
	)
	raw, err := c.completeJSON(ctx,
		`You are a recruiting assistant. Score how well the candidate matches the vacancy from 0 to 100 and summarize in two sentences. Reply with JSON: {"score": <int>, "summary": "<string>"}`,
		prompt,
	)
	if err != nil {
		return ScreenResult{}, err
	}
	var out ScreenResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return ScreenResult{}, fmt.Errorf("parse screen result: %w", err)
	}
	if out.Score < 0 || out.Score > 100 {
		return ScreenResult{}, fmt.Errorf("screen score out of range: %d", out.Score)
	}
	return out, nil
}

// ExtractRequirements derives a structured requirements object from a vacancy description.
func (c *Client) ExtractRequirements(ctx context.Context, description string) (map[string]any, error) {
	raw, err := c.completeJSON(ctx,
		`Extract hiring requirements from the vacancy description. Reply with JSON: {"skills": [<string>], "experienceYears": <int>, "education": "<string>", "languages": [<string>]}`,
		description,
	)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse requirements: %w", err)
	}
	return out, nil
}

// Contacts holds contact details parsed from a resume.
type Contacts struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ExtractContacts pulls contact details out of free-form resume text.
func (c *Client) ExtractContacts(ctx context.Context, resumeText string) (Contacts, error) {
	raw, err := c.completeJSON(ctx,
		`Extract contact details from the resume. Reply with JSON: {"email": "<string or empty>", "phone": "<string or empty>"}`,
		resumeText,
	)
	if err != nil {
		return Contacts{}, err
	}
	var out Contacts
	if err := json.Unmarshal(raw, &out); err != nil {
		return Contacts{}, fmt.Errorf("parse contacts: %w", err)
	}
	return out, nil
}

// AnalyzeInterview summarizes a completed voice interview from its transcripts.
func (c *Client) AnalyzeInterview(ctx context.Context, candidateName string, answers []string) (string, error) {
	if len(answers) == 0 {
		return "", errors.New("no transcribed answers to analyze")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Candidate: %s\n\n", candidateName)
	for i, a := range answers {
		fmt.Fprintf(&b, "Answer %d: %s\n", i+1, a)
	}
	res, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a recruiting assistant. Summarize the candidate's interview answers: strengths, weaknesses, and a hire/no-hire recommendation, in under 200 words."),
			openai.UserMessage(b.String()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("analyze interview: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return res.Choices[0].Message.Content, nil
}

// completeJSON runs a chat completion that must answer with a JSON object.
func (c *Client) completeJSON(ctx context.Context, system, user string) (json.RawMessage, error) {
	res, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(res.Choices) == 0 {
		return nil, errors.New("empty completion")
	}
	content := strings.TrimSpace(res.Choices[0].Message.Content)
	// Models occasionally wrap JSON in a code fence.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return json.RawMessage(strings.TrimSpace(content)), nil
}
