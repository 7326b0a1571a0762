package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayz/deepsearch/internal/chat"
	"github.com/kayz/deepsearch/internal/search"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "deepsearch.yaml")
	body := "storage:\n  driver: file\n  path: " + filepath.Join(dir, "store.json") + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("NEBULA_API_KEY", "")
	t.Setenv("DEEPSEARCH_STORAGE", "")
	t.Setenv("DEEPSEARCH_STORAGE_PATH", "")
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	SetBuild("abc123")
	out := run(t, "version")
	assert.Equal(t, "deepsearch "+version+" (abc123)\n", out)
}

func TestChatsLifecycle(t *testing.T) {
	cfg := writeTestConfig(t)

	assert.Contains(t, run(t, "--config", cfg, "chats", "list"), "No chats.")

	id := strings.TrimSpace(run(t, "--config", cfg, "chats", "new"))
	require.NotEmpty(t, id)

	list := run(t, "--config", cfg, "chats", "list")
	assert.Contains(t, list, id)
	assert.Contains(t, list, chat.DefaultTitle)

	assert.Contains(t, run(t, "--config", cfg, "chats", "show", "--raw", id), "# "+chat.DefaultTitle)

	assert.Contains(t, run(t, "--config", cfg, "chats", "delete", id), "Deleted "+id)
	assert.Contains(t, run(t, "--config", cfg, "chats", "list"), "No chats.")
}

func TestAPIKeyCommands(t *testing.T) {
	cfg := writeTestConfig(t)

	assert.Contains(t, run(t, "--config", cfg, "apikey", "status"), "not set")
	run(t, "--config", cfg, "apikey", "set", "sk-abcdefghijkl")
	assert.Contains(t, run(t, "--config", cfg, "apikey", "status"), "stored: sk-a*******ijkl")
	run(t, "--config", cfg, "apikey", "clear")
	assert.Contains(t, run(t, "--config", cfg, "apikey", "status"), "not set")
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", maskKey("abcd"))
	assert.Equal(t, "abcd**wxyz", maskKey("abcdefwxyz"))
}

func TestTranscriptIncludesSources(t *testing.T) {
	c := chat.Chat{
		Title: "What is Go?",
		Messages: []chat.Message{
			{Role: chat.RoleUser, Content: "What is Go?"},
			{Role: chat.RoleAssistant, Content: "A language.", Metadata: &chat.Metadata{
				Sources: []search.SearchResult{{Title: "Go", URL: "https://go.dev", Snippet: "home"}},
			}},
		},
	}
	md := transcript(c)
	assert.Contains(t, md, "# What is Go?")
	assert.Contains(t, md, "**You**")
	assert.Contains(t, md, "**Deepsearch**")
	assert.Contains(t, md, "[Go](https://go.dev)")
}
