// Package generator turns a natural-language prompt into an applied,
// validated set of whole-file changes. One prompt means exactly one model
// call; a response that does not conform to the change-set schema is a
// terminal GenerationError, never an automatic retry.
package generator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Generator builds repository snapshots, invokes the model, and applies the
// resulting change-set under the repository root.
type Generator struct {
	llm      LLM
	repoPath string
	keyFiles []string
	lineCap  int
}

// Option configures a Generator.
type Option func(*Generator)

// WithKeyFiles sets the whitelist of files included in the snapshot.
func WithKeyFiles(files []string) Option {
	return func(g *Generator) {
		g.keyFiles = files
	}
}

// WithLineCap sets the per-file line cap for the snapshot.
func WithLineCap(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.lineCap = n
		}
	}
}

var defaultKeyFiles = []string{
	"go.mod",
	"README.md",
	"cmd/main.go",
	"internal/config/config.go",
}

// New creates a generator rooted at repoPath.
func New(llm LLM, repoPath string, opts ...Option) *Generator {
	g := &Generator{
		llm:      llm,
		repoPath: repoPath,
		keyFiles: defaultKeyFiles,
		lineCap:  500,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate issues one model call for the prompt and parses the response into
// a ChangeSet. The repository snapshot is rebuilt on every call so the model
// always sees the current tree.
func (g *Generator) Generate(ctx context.Context, prompt string) (*ChangeSet, error) {
	log.Printf("Generating changes (prompt length: %d chars)", len(prompt))

	snapshot := g.BuildContext()
	user := buildUserMessage(prompt, snapshot)

	raw, err := g.llm.Complete(ctx, analysisSystemPrompt, user)
	if err != nil {
		return nil, err
	}

	cs, err := ParseChangeSet(raw)
	if err != nil {
		return nil, err
	}

	log.Printf("Generated %d file change(s) for branch %q", len(cs.Changes), cs.BranchName)
	return cs, nil
}

// Apply writes the change-set to disk under the repository root. Deleting a
// missing path is a no-op; create/modify write the full file content.
func (g *Generator) Apply(cs *ChangeSet) error {
	log.Printf("Applying %d file change(s)...", len(cs.Changes))

	for _, change := range cs.Changes {
		target, err := g.resolvePath(change.Path)
		if err != nil {
			return err
		}

		switch change.Action {
		case ActionCreate, ActionModify:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", change.Path, err)
			}
			if err := os.WriteFile(target, []byte(change.Content), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", change.Path, err)
			}
			log.Printf("Wrote %s", change.Path)

		case ActionDelete:
			err := os.Remove(target)
			if os.IsNotExist(err) {
				log.Printf("Skipping delete of missing file %s", change.Path)
			} else if err != nil {
				return fmt.Errorf("failed to delete %s: %w", change.Path, err)
			} else {
				log.Printf("Deleted %s", change.Path)
			}

		default:
			return fmt.Errorf("unrecognized action %q for %s", change.Action, change.Path)
		}
	}

	return nil
}

// resolvePath joins a change path to the repo root, rejecting paths that
// would escape it.
func (g *Generator) resolvePath(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute path not allowed: %s", rel)
	}
	target := filepath.Join(g.repoPath, rel)
	root := filepath.Clean(g.repoPath) + string(filepath.Separator)
	if !strings.HasPrefix(target, root) {
		return "", fmt.Errorf("path escapes repository root: %s", rel)
	}
	return target, nil
}

const analysisSystemPrompt = `You are a senior software architect and Go expert. Your task is to analyze a codebase and generate code changes based on a user's improvement request.

Follow these principles:
1. **Understand existing patterns**: Study the codebase architecture before making changes
2. **Minimal changes**: Only modify what's necessary to fulfill the request
3. **Follow conventions**: Match existing code style, naming, and patterns
4. **Preserve functionality**: Don't break existing features
5. **Security first**: Never introduce vulnerabilities

You will receive:
- A description of the codebase structure and key files
- A specific improvement request from the user

You must respond with a valid JSON object (and ONLY JSON, no markdown code blocks) with this structure:
{
    "success": true/false,
    "changes": [
        {
            "file_path": "relative/path/to/file.go",
            "action": "create" | "modify" | "delete",
            "content": "full file content for create/modify actions"
        }
    ],
    "explanation": "Clear explanation of what was changed and why",
    "branch_name": "descriptive-branch-name",
    "commit_message": "Brief commit message (50 chars max)",
    "pr_title": "Pull request title",
    "pr_body": "Markdown-formatted PR description with:\n- Summary of changes\n- Reasoning\n- Testing notes"
}

Important constraints:
- For "modify" actions, provide the COMPLETE file content, not just diffs
- Branch names: lowercase, kebab-case, descriptive (e.g., "add-logging-to-webhook")
- If the request is unclear or impossible, set success=false and explain why
- Keep changes focused and atomic (one logical change per PR)
- Never remove or modify existing functionality unless explicitly requested`

func buildUserMessage(prompt, snapshot string) string {
	return fmt.Sprintf(`# Codebase Context

%s

# Improvement Request

%s

# Your Task

Analyze the codebase and generate the necessary code changes to fulfill the improvement request.
Remember: Respond with ONLY the JSON object, no markdown code blocks or additional text.`, snapshot, prompt)
}
