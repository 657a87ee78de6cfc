package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	Model  string `yaml:"model"`
	ApiKey string `yaml:"api_key"`
}

type LLMConfig struct {
	Model      string `yaml:"model"`
	ApiKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type Config struct {
	LogFile       string          `yaml:"log"`
	DocRoot       string          `yaml:"doc_root"`
	MergeEventsMs int             `yaml:"write_debounce_ms"`
	ChunkSize     int             `yaml:"chunk_size"`
	ChunkOverlap  int             `yaml:"chunk_overlap"`
	RequestSize   int             `yaml:"request_size"`
	Results       int             `yaml:"results"`
	ServerAddr    string          `yaml:"server_addr"`
	ChromaAddr    string          `yaml:"chroma_addr"`
	LLM           LLMConfig       `yaml:"llm"`
	OpenAI        *ProviderConfig `yaml:"open_ai"`
	Gemini        *ProviderConfig `yaml:"gemini"`
}

func readConfig(cfgPath string) (*Config, error) {
	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := &Config{
		ChunkSize:    800,
		ChunkOverlap: 150,
		Results:      5,
	}
	dec := yaml.NewDecoder(cfgFile)
	err = dec.Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk_size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d with chunk_size %d",
			cfg.ChunkOverlap, cfg.ChunkSize)
	}

	// API keys may come from the environment instead of the config file.
	if cfg.LLM.ApiKey == "" {
		cfg.LLM.ApiKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Gemini != nil && cfg.Gemini.ApiKey == "" {
		cfg.Gemini.ApiKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.OpenAI != nil && cfg.OpenAI.ApiKey == "" {
		cfg.OpenAI.ApiKey = os.Getenv("OPENAI_API_KEY")
	}

	return cfg, nil
}
