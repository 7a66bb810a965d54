package improve

import (
	"context"
	"strings"
	"testing"

	"github.com/autodev/prbot/internal/generator"
)

func newTestIterator(git *fakeGit, gen *fakeGen, host *fakeHost, led *fakeIterLedger) *Iterator {
	return NewIterator(NewWorkspace("/repo"), git, gen, host, led, 5000)
}

func reviewerFeedback() Feedback {
	return Feedback{
		PRNumber:  42,
		CommentID: 100,
		Body:      "please handle the error here",
		Commenter: "octocat",
	}
}

func TestIteratorRunSuccess(t *testing.T) {
	git := &fakeGit{diff: "diff --git a/a.go b/a.go", sha: "fedcba9876543210"}
	gen := &fakeGen{}
	host := &fakeHost{}
	led := &fakeIterLedger{admit: true, next: 3}
	it := newTestIterator(git, gen, host, led)

	out, err := it.Run(context.Background(), reviewerFeedback())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !out.Success || out.Skipped {
		t.Fatalf("Unexpected outcome: %+v", out)
	}
	if out.IterationNumber != 3 {
		t.Errorf("IterationNumber = %d", out.IterationNumber)
	}
	if out.CommitSHA != "fedcba9876543210" {
		t.Errorf("CommitSHA = %q", out.CommitSHA)
	}

	want := []string{
		"pull do-the-thing",
		"diff main",
		"commit Do the thing",
		"head-sha",
		"push do-the-thing",
	}
	if strings.Join(git.ops, ",") != strings.Join(want, ",") {
		t.Errorf("Git ops = %v, want %v", git.ops, want)
	}

	if len(led.iterations) != 1 {
		t.Fatalf("Expected 1 iteration record, got %d", len(led.iterations))
	}
	rec := led.iterations[0]
	if !rec.Success || rec.IterationNumber != 3 || rec.CommentID != 100 {
		t.Errorf("Iteration record = %+v", rec)
	}

	if len(host.comments) != 1 {
		t.Fatalf("Expected 1 result comment, got %d", len(host.comments))
	}
	if !strings.Contains(host.comments[0], "✅") || !strings.Contains(host.comments[0], "fedcba9") {
		t.Errorf("Result comment = %q", host.comments[0])
	}
}

func TestIteratorSkipsReplayedComment(t *testing.T) {
	git := &fakeGit{}
	host := &fakeHost{}
	led := &fakeIterLedger{admit: false}
	it := newTestIterator(git, &fakeGen{}, host, led)

	out, err := it.Run(context.Background(), reviewerFeedback())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !out.Skipped {
		t.Fatal("Replayed comment should be skipped")
	}
	if len(git.ops) != 0 {
		t.Error("Skipped run must not touch the working tree")
	}
	if len(host.comments) != 0 {
		t.Error("Skipped run must not post a comment")
	}
	if len(led.iterations) != 0 {
		t.Error("Skipped run must not record an iteration")
	}
}

func TestIteratorPromptCarriesContext(t *testing.T) {
	git := &fakeGit{diff: "diff --git a/a.go b/a.go\n-old\n+new"}
	gen := &fakeGen{}
	led := &fakeIterLedger{admit: true}
	it := newTestIterator(git, gen, &fakeHost{}, led)

	fb := reviewerFeedback()
	fb.IsReview = true
	fb.FilePath = "internal/server/server.go"
	fb.DiffHunk = "@@ -1,3 +1,3 @@"

	if _, err := it.Run(context.Background(), fb); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	for _, part := range []string{
		"Do the thing",
		"original body",
		"-old\n+new",
		"please handle the error here",
		"internal/server/server.go",
		"@@ -1,3 +1,3 @@",
	} {
		if !strings.Contains(gen.prompt, part) {
			t.Errorf("Prompt missing %q", part)
		}
	}
}

func TestIteratorTruncatesLongDiff(t *testing.T) {
	git := &fakeGit{diff: strings.Repeat("x", 200)}
	gen := &fakeGen{}
	led := &fakeIterLedger{admit: true}
	it := NewIterator(NewWorkspace("/repo"), git, gen, &fakeHost{}, led, 50)

	if _, err := it.Run(context.Background(), reviewerFeedback()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(gen.prompt, "(diff truncated)") {
		t.Error("Prompt should carry the truncation marker")
	}
	if strings.Contains(gen.prompt, strings.Repeat("x", 51)) {
		t.Error("Prompt should not contain the full diff")
	}
}

func TestIteratorFailurePostsComment(t *testing.T) {
	git := &fakeGit{}
	gen := &fakeGen{validateErr: &generator.ValidationError{Path: "a.go", Reason: "syntax error"}}
	host := &fakeHost{}
	led := &fakeIterLedger{admit: true}
	it := newTestIterator(git, gen, host, led)

	out, err := it.Run(context.Background(), reviewerFeedback())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if out.Success {
		t.Fatal("Expected failure")
	}
	if out.FailedStep != "validate" {
		t.Errorf("FailedStep = %q", out.FailedStep)
	}

	if len(led.iterations) != 1 || led.iterations[0].Success {
		t.Error("Failed iteration must still be recorded")
	}
	if len(host.comments) != 1 {
		t.Fatalf("Expected failure comment, got %d", len(host.comments))
	}
	if !strings.Contains(host.comments[0], "❌") || !strings.Contains(host.comments[0], "validate") {
		t.Errorf("Failure comment = %q", host.comments[0])
	}

	if git.hasOp("checkout") {
		t.Error("Failed iteration should leave the PR branch in place for inspection")
	}
}

func TestIteratorFetchFailureRecorded(t *testing.T) {
	host := &fakeHost{getErr: context.DeadlineExceeded}
	git := &fakeGit{}
	led := &fakeIterLedger{admit: true}
	it := newTestIterator(git, &fakeGen{}, host, led)

	out, err := it.Run(context.Background(), reviewerFeedback())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if out.Success || out.FailedStep != "fetch_pr" {
		t.Errorf("Unexpected outcome: %+v", out)
	}
	if len(git.ops) != 0 {
		t.Error("Working tree must stay untouched when the PR fetch fails")
	}
	if len(led.iterations) != 1 {
		t.Error("Fetch failure must still be recorded")
	}
}
