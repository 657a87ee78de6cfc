package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func Test_ReadConfig(t *testing.T) {
	path := writeConfig(t, `
log: rag.log
doc_root: /docs
chunk_size: 1000
chunk_overlap: 200
results: 7
server_addr: localhost:9000
chroma_addr: http://localhost:8000
llm:
  model: gemini-1.5-pro
  api_key: secret
  timeout_sec: 30
gemini:
  model: text-embedding-004
  api_key: embed-secret
`)

	cfg, err := readConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "rag.log", cfg.LogFile)
	assert.Equal(t, "/docs", cfg.DocRoot)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 7, cfg.Results)
	assert.Equal(t, "localhost:9000", cfg.ServerAddr)
	assert.Equal(t, "http://localhost:8000", cfg.ChromaAddr)
	assert.Equal(t, "gemini-1.5-pro", cfg.LLM.Model)
	assert.Equal(t, "secret", cfg.LLM.ApiKey)
	assert.Equal(t, 30, cfg.LLM.TimeoutSec)
	require.NotNil(t, cfg.Gemini)
	assert.Equal(t, "embed-secret", cfg.Gemini.ApiKey)
	assert.Nil(t, cfg.OpenAI)
}

func Test_ReadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
server_addr: localhost:9000
`)

	cfg, err := readConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 150, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.Results)
}

func Test_ReadConfig_ApiKeyFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	path := writeConfig(t, `
llm:
  model: gemini-1.5-pro
gemini:
  model: text-embedding-004
`)

	cfg, err := readConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.LLM.ApiKey)
	require.NotNil(t, cfg.Gemini)
	assert.Equal(t, "env-key", cfg.Gemini.ApiKey)
}

func Test_ReadConfig_RejectsBadChunking(t *testing.T) {
	cases := []string{
		"chunk_size: 100\nchunk_overlap: 100\n",
		"chunk_size: 100\nchunk_overlap: 150\n",
		"chunk_size: 0\n",
		"chunk_size: 100\nchunk_overlap: -1\n",
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			_, err := readConfig(writeConfig(t, c))
			assert.Error(t, err)
		})
	}
}

func Test_ReadConfig_MissingFile(t *testing.T) {
	_, err := readConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
