package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the prbot service
type Config struct {
	// Server settings
	Port int

	// GitHub App settings
	GitHubAppID          string
	GitHubPrivateKey     string
	GitHubInstallationID string
	GitHubWebhookSecret  string

	// Target repository
	Repository string // "owner/name"
	RepoPath   string // fixed local working tree
	BaseBranch string

	// The single human allowed to trigger workflows
	OwnerLogin string

	// LLM settings
	AnthropicAPIKey string
	ClaudeModel     string

	// Git author identity for generated commits
	GitAuthorName  string
	GitAuthorEmail string

	// Ledger settings
	LedgerPath string

	// Workflow tuning
	DiffCharLimit     int
	SnapshotLineCap   int
	TokenSafetyMargin time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	privateKey := normalizePrivateKey(os.Getenv("GITHUB_PRIVATE_KEY"))

	cfg := &Config{
		Port:                 getEnvInt("PORT", 8000),
		GitHubAppID:          os.Getenv("GITHUB_APP_ID"),
		GitHubPrivateKey:     privateKey,
		GitHubInstallationID: os.Getenv("GITHUB_INSTALLATION_ID"),
		GitHubWebhookSecret:  os.Getenv("GITHUB_WEBHOOK_SECRET"),
		Repository:           os.Getenv("GITHUB_REPOSITORY"),
		RepoPath:             getEnv("REPO_PATH", "."),
		BaseBranch:           getEnv("BASE_BRANCH", "main"),
		OwnerLogin:           os.Getenv("OWNER_LOGIN"),
		AnthropicAPIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		ClaudeModel:          getEnv("CLAUDE_MODEL", "claude-3-5-sonnet-20241022"),
		GitAuthorName:        getEnv("GIT_AUTHOR_NAME", "prbot"),
		GitAuthorEmail:       getEnv("GIT_AUTHOR_EMAIL", "prbot@users.noreply.github.com"),
		LedgerPath:           getEnv("LEDGER_PATH", "prbot.db"),
		DiffCharLimit:        getEnvInt("DIFF_CHAR_LIMIT", 5000),
		SnapshotLineCap:      getEnvInt("SNAPSHOT_LINE_CAP", 500),
		TokenSafetyMargin:    time.Duration(getEnvInt("TOKEN_SAFETY_MARGIN_MINUTES", 10)) * time.Minute,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalizePrivateKey turns an env-supplied PEM blob into a usable key.
// Surrounding quotes and escaped newlines are common when the key is pasted
// into a .env file.
func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimPrefix(trimmed, "\"")
		trimmed = strings.TrimSuffix(trimmed, "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimPrefix(trimmed, "'")
		trimmed = strings.TrimSuffix(trimmed, "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}

// validate checks that all required configuration is present
func (c *Config) validate() error {
	if c.GitHubAppID == "" {
		return fmt.Errorf("GITHUB_APP_ID is required")
	}
	if c.GitHubPrivateKey == "" {
		return fmt.Errorf("GITHUB_PRIVATE_KEY is required")
	}
	if c.GitHubInstallationID == "" {
		return fmt.Errorf("GITHUB_INSTALLATION_ID is required")
	}
	if c.GitHubWebhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}
	if c.Repository == "" || !strings.Contains(c.Repository, "/") {
		return fmt.Errorf("GITHUB_REPOSITORY is required in owner/name form")
	}
	if c.OwnerLogin == "" {
		return fmt.Errorf("OWNER_LOGIN is required")
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	c.applyWorkflowDefaults()
	return nil
}

func (c *Config) applyWorkflowDefaults() {
	if c.DiffCharLimit <= 0 {
		c.DiffCharLimit = 5000
	}
	if c.SnapshotLineCap <= 0 {
		c.SnapshotLineCap = 500
	}
	if c.TokenSafetyMargin <= 0 {
		c.TokenSafetyMargin = 10 * time.Minute
	}
}

// RepoOwnerName splits the configured repository into owner and name.
func (c *Config) RepoOwnerName() (string, string) {
	parts := strings.SplitN(c.Repository, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return c.Repository, ""
}

// getEnv gets environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
