package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublishPostsForm(t *testing.T) {
	var (
		path string
		text string
		chat string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		text = r.PostForm.Get("text")
		chat = r.PostForm.Get("chat_id")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier("123:abc", "-100", server.URL)
	if err := n.Publish(context.Background(), "ACME 8-K"); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if path != "/bot123:abc/sendMessage" {
		t.Fatalf("unexpected path %s", path)
	}
	if text != "ACME 8-K" || chat != "-100" {
		t.Fatalf("unexpected form text=%q chat=%q", text, chat)
	}
}

func TestPublishErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	if err := NewNotifier("t", "c", server.URL).Publish(context.Background(), "x"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
	if err := NewNotifier("", "", server.URL).Publish(context.Background(), "x"); err == nil {
		t.Fatal("expected error when misconfigured")
	}
}
