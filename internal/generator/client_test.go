package generator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storypress/storypress/internal/crypto"
	"github.com/storypress/storypress/internal/models"
)

func TestGenerateStoryStubMode(t *testing.T) {
	client := NewHTTPClient("", nil, true)

	payload, err := client.GenerateStory(context.Background(), Request{
		Title: "Council Approves Budget",
		Body:  "The council voted. The budget passed. Works begin in spring. A fourth sentence is ignored.",
	})
	if err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}

	if payload.Title != "Council Approves Budget" {
		t.Errorf("title = %q", payload.Title)
	}
	if len(payload.Slides) != 3 {
		t.Fatalf("slides = %d, want 3", len(payload.Slides))
	}
	for i, slide := range payload.Slides {
		if slide.Position != i+1 {
			t.Errorf("slide %d position = %d", i, slide.Position)
		}
		if slide.Text == "" {
			t.Errorf("slide %d has empty text", i)
		}
	}
}

func TestGenerateStoryHTTP(t *testing.T) {
	signer, err := crypto.NewRequestSigner("shared-secret")
	if err != nil {
		t.Fatalf("NewRequestSigner: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" {
			t.Errorf("path = %q, want /generate", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if sig := r.Header.Get("X-Storypress-Signature"); !signer.Verify(body, sig) {
			t.Error("request signature did not verify")
		}

		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		if req.Title != "Harbour festival returns" {
			t.Errorf("request title = %q", req.Title)
		}

		json.NewEncoder(w).Encode(StoryPayload{
			Title: "Festival is back",
			Slides: []models.Slide{
				{Position: 1, Kind: "text", Text: "It returns this summer."},
			},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, signer, false)
	payload, err := client.GenerateStory(context.Background(), Request{
		TopicArticleID: 7,
		Title:          "Harbour festival returns",
		Body:           "The festival returns this summer.",
	})
	if err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}
	if payload.Title != "Festival is back" {
		t.Errorf("title = %q", payload.Title)
	}
	if len(payload.Slides) != 1 {
		t.Errorf("slides = %d, want 1", len(payload.Slides))
	}
}

func TestGenerateStoryHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "provider overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, nil, false)
	if _, err := client.GenerateStory(context.Background(), Request{Title: "x"}); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}
