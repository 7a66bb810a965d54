package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/autodev/prbot/internal/config"
	"github.com/autodev/prbot/internal/generator"
	"github.com/autodev/prbot/internal/git"
	"github.com/autodev/prbot/internal/github"
	"github.com/autodev/prbot/internal/improve"
	"github.com/autodev/prbot/internal/ledger"
	"github.com/autodev/prbot/internal/webhook"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

var (
	loadDotEnv         = godotenv.Load
	openLedger         = ledger.Open
	defaultListenServe = http.ListenAndServe
)

func main() {
	if err := run(context.Background(), defaultListenServe); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(ctx context.Context, serve func(string, http.Handler) error) error {
	// Load .env file (ignore error if file doesn't exist)
	_ = loadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Printf("Starting prbot server...")
	log.Printf("Port: %d", cfg.Port)
	log.Printf("Repository: %s (base %s)", cfg.Repository, cfg.BaseBranch)
	log.Printf("Working tree: %s", cfg.RepoPath)
	log.Printf("Owner: %s", cfg.OwnerLogin)
	log.Printf("Claude model: %s", cfg.ClaudeModel)

	led, err := openLedger(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer led.Close()

	appAuth := github.NewAppAuth(cfg.GitHubAppID, cfg.GitHubPrivateKey, cfg.GitHubInstallationID, cfg.TokenSafetyMargin)

	owner, repo := cfg.RepoOwnerName()
	host := github.NewClient(appAuth, owner, repo)

	driver := git.NewDriver(cfg.RepoPath, git.Author{
		Name:  cfg.GitAuthorName,
		Email: cfg.GitAuthorEmail,
	})

	gen := generator.New(
		generator.NewClaude(cfg.AnthropicAPIKey, cfg.ClaudeModel),
		cfg.RepoPath,
		generator.WithLineCap(cfg.SnapshotLineCap),
	)

	workspace := improve.NewWorkspace(cfg.RepoPath)
	creator := improve.NewCreator(workspace, driver, gen, host, led, cfg.BaseBranch, cfg.OwnerLogin)
	iterator := improve.NewIterator(workspace, driver, gen, host, led, cfg.DiffCharLimit)

	queue := improve.NewFeedbackQueue(iterator, 16)
	queue.Start()
	defer queue.Shutdown()

	handler := webhook.NewHandler(cfg.GitHubWebhookSecret, cfg.OwnerLogin, led, queue)

	r := mux.NewRouter()

	r.HandleFunc("/webhooks/github", handler.Handle).Methods("POST")

	r.HandleFunc("/improve", improveHandler(creator)).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods("GET")

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"service":"prbot","status":"running","repository":"%s"}`, cfg.Repository)
	}).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Server listening on %s", addr)
	log.Printf("Webhook endpoint: http://localhost%s/webhooks/github", addr)
	log.Printf("Health check: http://localhost%s/health", addr)

	if err := serve(addr, r); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// improveHandler accepts an owner-initiated improvement request and runs the
// creation workflow synchronously so the response carries the PR URL.
func improveHandler(creator *improve.Creator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt         string `json:"prompt"`
			Requester      string `json:"requester"`
			ConversationID string `json:"conversation_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Prompt == "" || body.Requester == "" {
			http.Error(w, `{"error":"prompt and requester are required"}`, http.StatusBadRequest)
			return
		}

		out, err := creator.Run(r.Context(), improve.Request{
			ConversationID: body.ConversationID,
			Requester:      body.Requester,
			Prompt:         body.Prompt,
		})
		if err != nil {
			log.Printf("Improvement request rejected: %v", err)
			http.Error(w, `{"error":"request rejected"}`, http.StatusForbidden)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"request_id": out.RequestID,
			"success":    out.Success,
			"branch":     out.BranchName,
			"pr_number":  out.PRNumber,
			"pr_url":     out.PRURL,
			"error":      out.Err,
		})
	}
}
