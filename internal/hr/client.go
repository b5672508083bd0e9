package hr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"interview-orchestrator/internal/config"
)

// ErrUnauthorized is returned when the HR board rejects the stored credentials.
var ErrUnauthorized = errors.New("hr board rejected credentials")

// Credentials is the decrypted content of an integration record.
type Credentials struct {
	AccessToken string `json:"accessToken"`
}

// Vacancy is the external board's view of one vacancy.
type Vacancy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Archived    bool   `json:"archived"`
}

// Response is the external board's view of one candidate response.
type Response struct {
	ID            string `json:"id"`
	CandidateName string `json:"candidateName"`
	ResumeText    string `json:"resumeText"`
}

// Client is a thin JSON client for the external HR board API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client with the configured base URL and timeout.
func NewClient(cfg config.Config) *Client {
	timeout := cfg.HRBoardTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.HRBoardBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetVacancy fetches current vacancy details from the board.
func (c *Client) GetVacancy(ctx context.Context, creds Credentials, externalID string) (Vacancy, error) {
	var out Vacancy
	if err := c.getJSON(ctx, creds, "/vacancies/"+externalID, &out); err != nil {
		return Vacancy{}, err
	}
	return out, nil
}

// ListResponses fetches the candidate responses for a vacancy.
func (c *Client) ListResponses(ctx context.Context, creds Credentials, externalID string) ([]Response, error) {
	var out struct {
		Items []Response `json:"items"`
	}
	if err := c.getJSON(ctx, creds, "/vacancies/"+externalID+"/responses", &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// VerifyCredentials checks that the stored token is still accepted by the board.
func (c *Client) VerifyCredentials(ctx context.Context, creds Credentials) error {
	var out struct {
		ID string `json:"id"`
	}
	return c.getJSON(ctx, creds, "/me", &out)
}

// SendWelcome posts a welcome message into the board's chat with a candidate.
func (c *Client) SendWelcome(ctx context.Context, creds Credentials, responseExternalID, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal welcome message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses/"+responseExternalID+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hr board request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("send welcome message: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, creds Credentials, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hr board request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("hr board request %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode hr board response: %w", err)
	}
	return nil
}
