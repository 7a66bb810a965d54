package generator

import (
	"errors"
	"strings"
	"testing"
)

const validResponse = `{
	"success": true,
	"changes": [
		{"file_path": "internal/server/server.go", "action": "modify", "content": "package server\n"}
	],
	"explanation": "Added request logging",
	"branch_name": "add-request-logging",
	"commit_message": "Add request logging",
	"pr_title": "Add request logging to the server",
	"pr_body": "## Summary\nAdds logging."
}`

func TestParseChangeSetValid(t *testing.T) {
	cs, err := ParseChangeSet(validResponse)
	if err != nil {
		t.Fatalf("ParseChangeSet returned error: %v", err)
	}
	if !cs.Success {
		t.Error("Expected success=true")
	}
	if len(cs.Changes) != 1 {
		t.Fatalf("Expected 1 change, got %d", len(cs.Changes))
	}
	if cs.Changes[0].Path != "internal/server/server.go" {
		t.Errorf("Path = %q", cs.Changes[0].Path)
	}
	if cs.BranchName != "add-request-logging" {
		t.Errorf("BranchName = %q", cs.BranchName)
	}
}

func TestParseChangeSetStripsCodeFence(t *testing.T) {
	fenced := "```json\n" + validResponse + "\n```"
	cs, err := ParseChangeSet(fenced)
	if err != nil {
		t.Fatalf("ParseChangeSet returned error: %v", err)
	}
	if cs.CommitMessage != "Add request logging" {
		t.Errorf("CommitMessage = %q", cs.CommitMessage)
	}
}

func TestParseChangeSetStripsBareFence(t *testing.T) {
	fenced := "```\n" + validResponse + "\n```"
	if _, err := ParseChangeSet(fenced); err != nil {
		t.Fatalf("ParseChangeSet returned error: %v", err)
	}
}

func TestParseChangeSetEmptyResponse(t *testing.T) {
	_, err := ParseChangeSet("   \n")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected *GenerationError, got %T", err)
	}
}

func TestParseChangeSetInvalidJSON(t *testing.T) {
	_, err := ParseChangeSet("this is not json")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected *GenerationError, got %T", err)
	}
	if !strings.Contains(genErr.Reason, "invalid JSON") {
		t.Errorf("Reason = %q", genErr.Reason)
	}
}

func TestParseChangeSetMissingKey(t *testing.T) {
	missing := `{"success": true, "changes": [], "explanation": "x", "branch_name": "b", "commit_message": "c", "pr_title": "t"}`
	_, err := ParseChangeSet(missing)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected *GenerationError, got %T", err)
	}
	if !strings.Contains(genErr.Reason, "pr_body") {
		t.Errorf("Reason should name the missing key: %q", genErr.Reason)
	}
}

func TestParseChangeSetRejectsEmptyChangeList(t *testing.T) {
	empty := `{"success": true, "changes": [], "explanation": "nothing to do", "branch_name": "b", "commit_message": "c", "pr_title": "t", "pr_body": "d"}`
	_, err := ParseChangeSet(empty)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected *GenerationError, got %T: %v", err, err)
	}
	if !strings.Contains(genErr.Reason, "no changes") {
		t.Errorf("Reason = %q", genErr.Reason)
	}
}

func TestParseChangeSetModelDeclined(t *testing.T) {
	declined := `{"success": false, "changes": [], "explanation": "request is ambiguous", "branch_name": "", "commit_message": "", "pr_title": "", "pr_body": ""}`
	_, err := ParseChangeSet(declined)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected *GenerationError, got %T", err)
	}
	if genErr.Reason != "request is ambiguous" {
		t.Errorf("Reason = %q", genErr.Reason)
	}
}

func TestParseChangeSetUnknownAction(t *testing.T) {
	bad := `{
		"success": true,
		"changes": [{"file_path": "a.go", "action": "rename", "content": ""}],
		"explanation": "x", "branch_name": "b", "commit_message": "c", "pr_title": "t", "pr_body": "d"
	}`
	_, err := ParseChangeSet(bad)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected *GenerationError, got %T", err)
	}
	if !strings.Contains(genErr.Reason, "rename") {
		t.Errorf("Reason should name the bad action: %q", genErr.Reason)
	}
}

func TestParseChangeSetEmptyPath(t *testing.T) {
	bad := `{
		"success": true,
		"changes": [{"file_path": "", "action": "create", "content": "x"}],
		"explanation": "x", "branch_name": "b", "commit_message": "c", "pr_title": "t", "pr_body": "d"
	}`
	_, err := ParseChangeSet(bad)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected *GenerationError, got %T", err)
	}
}
