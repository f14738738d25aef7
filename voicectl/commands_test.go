package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/agentic-voice/backend/internal/models"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestKeywordsCommand(t *testing.T) {
	out, _, err := run(t, "keywords", "Any", "tech", "news", "today?")
	require.NoError(t, err)
	require.Contains(t, out, "news")
	require.Contains(t, out, "technology")
}

func TestKeywordsCommandNoMatch(t *testing.T) {
	out, _, err := run(t, "keywords", "hello")
	require.NoError(t, err)
	require.Contains(t, out, "no categories matched")
}

func TestKeywordsCommandCustomTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: space\n  triggers: [rocket, orbit]\n"), 0o600))

	out, _, err := run(t, "--keywords-file", path, "keywords", "Rocket", "launch")
	require.NoError(t, err)
	require.Contains(t, out, "space")

	out, _, err = run(t, "--keywords-file", path, "categories")
	require.NoError(t, err)
	require.Contains(t, out, "1 categories")
	require.Contains(t, out, "rocket, orbit")
}

func TestKeywordsCommandRequiresText(t *testing.T) {
	_, _, err := run(t, "keywords")
	require.Error(t, err)
}

func TestAskStreamsBody(t *testing.T) {
	var got struct {
		Messages []models.Message `json:"messages"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/brain", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("X-LLM-Start", "1")
		w.Header().Set("X-LLM-Response", "2")
		_, _ = io.WriteString(w, "hello there")
	}))
	defer srv.Close()

	out, errOut, err := run(t, "ask", "--server", srv.URL+"/", "--api-key", "k", "-v", "how", "are", "you")
	require.NoError(t, err)
	require.Equal(t, "hello there\n", out)
	require.Contains(t, errOut, "X-LLM-Start: 1")
	require.Contains(t, errOut, "X-LLM-Response: 2")
	require.Equal(t, "Bearer k", auth)
	require.Equal(t, []models.Message{{Role: "user", Content: "how are you"}}, got.Messages)
}

func TestAskServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := run(t, "ask", "--server", srv.URL, "weather")
	require.ErrorContains(t, err, "500")
}
