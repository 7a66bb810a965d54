package generator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// File actions a change-set entry may carry.
const (
	ActionCreate = "create"
	ActionModify = "modify"
	ActionDelete = "delete"
)

// FileChange is one file operation in a change-set. Content holds the
// complete file body for create/modify; whole-file replacement trades token
// cost for never having to match a patch hunk.
type FileChange struct {
	Path    string `json:"file_path"`
	Action  string `json:"action"`
	Content string `json:"content"`
}

// ChangeSet is the structured output of one generation call.
type ChangeSet struct {
	Success       bool         `json:"success"`
	Changes       []FileChange `json:"changes"`
	Explanation   string       `json:"explanation"`
	BranchName    string       `json:"branch_name"`
	CommitMessage string       `json:"commit_message"`
	PRTitle       string       `json:"pr_title"`
	PRBody        string       `json:"pr_body"`
}

// GenerationError reports model output that could not be turned into a
// usable change-set. It is terminal for the run; a fresh human-initiated
// request is the only retry path.
type GenerationError struct {
	Reason string
}

func (e *GenerationError) Error() string {
	return "generation failed: " + e.Reason
}

var requiredKeys = []string{
	"success", "changes", "explanation", "branch_name",
	"commit_message", "pr_title", "pr_body",
}

// ParseChangeSet parses a raw model response into a ChangeSet. A fenced code
// block wrapper, if present, is stripped first. Malformed JSON, missing keys,
// or success=false all yield a *GenerationError.
func ParseChangeSet(raw string) (*ChangeSet, error) {
	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return nil, &GenerationError{Reason: "empty response"}
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &keys); err != nil {
		return nil, &GenerationError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	for _, key := range requiredKeys {
		if _, ok := keys[key]; !ok {
			return nil, &GenerationError{Reason: "missing required key: " + key}
		}
	}

	var cs ChangeSet
	if err := json.Unmarshal([]byte(cleaned), &cs); err != nil {
		return nil, &GenerationError{Reason: fmt.Sprintf("invalid change-set: %v", err)}
	}

	if !cs.Success {
		reason := strings.TrimSpace(cs.Explanation)
		if reason == "" {
			reason = "model declined the request"
		}
		return nil, &GenerationError{Reason: reason}
	}

	// A successful response with nothing to change is as useless as a
	// declined one; rejecting it here keeps the workflow from branching for
	// a no-op.
	if len(cs.Changes) == 0 {
		return nil, &GenerationError{Reason: "no changes generated"}
	}

	for _, change := range cs.Changes {
		switch change.Action {
		case ActionCreate, ActionModify, ActionDelete:
		default:
			return nil, &GenerationError{Reason: fmt.Sprintf("unrecognized action %q for %s", change.Action, change.Path)}
		}
		if change.Path == "" {
			return nil, &GenerationError{Reason: "change entry with empty file_path"}
		}
	}

	return &cs, nil
}

// stripCodeFence removes a surrounding markdown code fence, which models
// sometimes add despite instructions.
func stripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[len("```json"):]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[3:]
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}
