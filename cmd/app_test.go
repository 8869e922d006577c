package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/askpdf/pkg/conversation"
	"github.com/xhad/askpdf/pkg/gateway"
	"github.com/xhad/askpdf/pkg/loader"
	"github.com/xhad/askpdf/pkg/session"
)

func newBackendServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"vector_store":{"document_count":7}}`)
	})
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chunks":4}`)
	})
	mux.HandleFunc("/api/query-stream", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "The answer ")
		fmt.Fprint(w, "is 42.")
	})
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"answer":"Synced.","sources":[{"text":"chunk one"}]}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	color.NoColor = true
	server := newBackendServer(t)

	controller := session.New(gateway.New(server.URL + "/api"))

	out := &bytes.Buffer{}
	return &App{
		controller: controller,
		loader:     loader.New(),
		status:     newStatusCache(controller, time.Minute),
		showSource: true,
		out:        out,
	}, out
}

func TestIsExit(t *testing.T) {
	for _, line := range []string{"exit", "EXIT", " quit ", "/exit"} {
		assert.True(t, isExit(line), line)
	}
	for _, line := range []string{"", "exit now", "/clear"} {
		assert.False(t, isExit(line), line)
	}
}

func TestReplStreamsAnswer(t *testing.T) {
	app, out := newTestApp(t)

	err := app.repl(context.Background(), strings.NewReader("What is it?\nexit\nignored\n"))
	require.NoError(t, err)

	assert.Contains(t, out.String(), "The answer is 42.")
	transcript := app.controller.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, "What is it?", transcript[1].Content)
	assert.Equal(t, "The answer is 42.", transcript[2].Content)
}

func TestReplSyncShowsSources(t *testing.T) {
	app, out := newTestApp(t)

	require.NoError(t, app.repl(context.Background(), strings.NewReader("/stream off\nWhy?\n")))

	assert.Contains(t, out.String(), "Synced.")
	assert.Contains(t, out.String(), "1. chunk one")
}

func TestUploadAndDocs(t *testing.T) {
	app, out := newTestApp(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 not really"), 0o644))

	app.handle(context.Background(), "/upload "+path)
	assert.Contains(t, out.String(), "report.pdf: added 4 chunks")
	assert.Contains(t, out.String(), "Processing complete! Added 4 total chunks from 1 files.")

	out.Reset()
	app.handle(context.Background(), "/docs")
	assert.Contains(t, out.String(), "report.pdf  4 chunks")
	assert.Contains(t, out.String(), "Total: 1 documents, 4 chunks")
}

func TestStatusCommand(t *testing.T) {
	app, out := newTestApp(t)

	app.handle(context.Background(), "/status")
	assert.Contains(t, out.String(), "Online")
	assert.Contains(t, out.String(), "documents: 7")
}

func TestTopKCommand(t *testing.T) {
	app, out := newTestApp(t)

	app.handle(context.Background(), "/topk 8")
	assert.Equal(t, 8, app.controller.TopK())

	out.Reset()
	app.handle(context.Background(), "/topk 11")
	assert.Contains(t, out.String(), "must be between 1 and 10")
	assert.Equal(t, 8, app.controller.TopK())
}

func TestClearCommand(t *testing.T) {
	app, _ := newTestApp(t)

	app.handle(context.Background(), "hello")
	require.Len(t, app.controller.Transcript(), 3)

	app.handle(context.Background(), "/clear")
	transcript := app.controller.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, conversation.ClearGreeting, transcript[0].Content)
}

func TestQuickQuestion(t *testing.T) {
	app, out := newTestApp(t)

	app.handle(context.Background(), "/q")
	assert.Contains(t, out.String(), "1. Summarize the main topics")

	app.handle(context.Background(), "/q 2")
	transcript := app.controller.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, "What are the key findings?", transcript[1].Content)

	out.Reset()
	app.handle(context.Background(), "/q 9")
	assert.Contains(t, out.String(), "between 1 and 5")
}

func TestExportCommand(t *testing.T) {
	app, _ := newTestApp(t)
	path := filepath.Join(t.TempDir(), "chat.md")

	app.handle(context.Background(), "/export "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Document Chat")
}

func TestUnknownCommand(t *testing.T) {
	app, out := newTestApp(t)

	app.handle(context.Background(), "/nope")
	assert.Contains(t, out.String(), "Unknown command /nope")
}
