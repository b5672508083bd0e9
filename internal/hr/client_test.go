package hr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"interview-orchestrator/internal/config"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(config.Config{HRBoardBaseURL: srv.URL})
}

func TestGetVacancy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vacancies/ext-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("unexpected auth header %q", got)
		}
		_ = json.NewEncoder(w).Encode(Vacancy{ID: "ext-1", Name: "Go Developer", Archived: false})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	v, err := c.GetVacancy(context.Background(), Credentials{AccessToken: "token-1"}, "ext-1")
	if err != nil {
		t.Fatalf("get vacancy: %v", err)
	}
	if v.Name != "Go Developer" {
		t.Fatalf("unexpected vacancy: %+v", v)
	}
}

func TestListResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vacancies/ext-1/responses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []Response{
				{ID: "r-1", CandidateName: "Alice"},
				{ID: "r-2", CandidateName: "Bob"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	items, err := c.ListResponses(context.Background(), Credentials{AccessToken: "t"}, "ext-1")
	if err != nil {
		t.Fatalf("list responses: %v", err)
	}
	if len(items) != 2 || items[0].ID != "r-1" {
		t.Fatalf("unexpected responses: %+v", items)
	}
}

func TestUnauthorizedIsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	err := c.VerifyCredentials(context.Background(), Credentials{AccessToken: "revoked"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSendWelcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/responses/r-1/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["text"] == "" {
			t.Errorf("expected non-empty text")
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if err := c.SendWelcome(context.Background(), Credentials{AccessToken: "t"}, "r-1", "Hello!"); err != nil {
		t.Fatalf("send welcome: %v", err)
	}
}

func TestServerErrorIsNotUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	err := c.VerifyCredentials(context.Background(), Credentials{AccessToken: "t"})
	if err == nil || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
