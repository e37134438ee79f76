package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings holds persistent defaults loaded from a config file. Every
// credential can be overridden by its environment variable, which wins
// over the file.
type Settings struct {
	GitHubToken string `yaml:"github_token,omitempty"`

	Trello TrelloConfig `yaml:"trello,omitempty"`
	AI     AIConfig     `yaml:"ai,omitempty"`

	// DefaultRepo is analyzed when no repository argument is given.
	DefaultRepo string `yaml:"default_repo,omitempty"`

	// MaxFiles caps how many files are scanned per run. Zero means the
	// built-in default.
	MaxFiles int `yaml:"max_files,omitempty"`

	// HistoryPath is the SQLite database recording past runs. Empty
	// disables history.
	HistoryPath string `yaml:"history_path,omitempty"`

	Server ServerConfig `yaml:"server,omitempty"`
}

// TrelloConfig holds board credentials.
type TrelloConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	Token   string `yaml:"token,omitempty"`
	BoardID string `yaml:"board_id,omitempty"` // bare ID or board URL
}

// AIConfig holds model provider keys. OpenAI is preferred when both are set.
type AIConfig struct {
	OpenAIKey    string `yaml:"openai_api_key,omitempty"`
	AnthropicKey string `yaml:"anthropic_api_key,omitempty"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Listen   string `yaml:"listen,omitempty"`    // default ":8080"
	SpoolDir string `yaml:"spool_dir,omitempty"` // watched for drop-in analysis requests
}

// LoadSettings reads a YAML config file into Settings and applies environment
// overrides. If the file does not exist, env-only Settings are returned with
// a nil error.
func LoadSettings(path string) (*Settings, error) {
	var s Settings

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	s.applyEnv()
	return &s, nil
}

func (s *Settings) applyEnv() {
	override(&s.GitHubToken, "GITHUB_TOKEN")
	override(&s.Trello.APIKey, "TRELLO_API_KEY")
	override(&s.Trello.Token, "TRELLO_TOKEN")
	override(&s.Trello.BoardID, "TRELLO_BOARD_ID")
	override(&s.AI.OpenAIKey, "OPENAI_API_KEY")
	override(&s.AI.AnthropicKey, "ANTHROPIC_API_KEY")
}

func override(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
