package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storypress/storypress/internal/crypto"
)

func TestNotifyDeliversSignedEvent(t *testing.T) {
	signer, err := crypto.NewRequestSigner("shared-secret")
	if err != nil {
		t.Fatalf("NewRequestSigner: %v", err)
	}

	var gotEvent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			t.Errorf("path = %q, want /events", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if sig := r.Header.Get("X-Storypress-Signature"); !signer.Verify(body, sig) {
			t.Error("notification signature did not verify")
		}

		var envelope struct {
			Event  string `json:"event"`
			SentAt string `json:"sent_at"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			t.Errorf("unmarshal envelope: %v", err)
		}
		gotEvent = envelope.Event
		if envelope.SentAt == "" {
			t.Error("envelope missing sent_at")
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, signer)
	if err := n.Notify(context.Background(), StoryReady, StoryPayload{StoryID: 3, Title: "t"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotEvent != StoryReady {
		t.Errorf("event = %q, want %q", gotEvent, StoryReady)
	}
}

func TestNotifyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, nil)
	if err := n.Notify(context.Background(), StoryPublished, StoryPayload{StoryID: 1}); err == nil {
		t.Fatal("expected an error for a 5xx response")
	}
}

func TestNotifyUnconfiguredIsNoop(t *testing.T) {
	n := NewNotifier("", nil)
	if err := n.Notify(context.Background(), StoryReady, StoryPayload{StoryID: 1}); err != nil {
		t.Fatalf("unconfigured notifier should be a no-op, got %v", err)
	}
}
