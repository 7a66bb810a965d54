package improve

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/autodev/prbot/internal/generator"
	"github.com/autodev/prbot/internal/ledger"
)

// IterationLedger persists iteration state and arbitrates comment admission.
type IterationLedger interface {
	AdmitComment(ctx context.Context, commentID int64, prNumber int, body, commenter string) (bool, error)
	NextIterationNumber(ctx context.Context, prNumber int) (int, error)
	RecordIteration(ctx context.Context, it *ledger.Iteration) error
}

// Feedback is one reviewer comment on a bot-owned PR, already filtered by the
// webhook gateway.
type Feedback struct {
	PRNumber  int
	CommentID int64
	Body      string
	Commenter string

	// Review comments carry the file and diff hunk they were left on.
	IsReview bool
	FilePath string
	DiffHunk string
}

// IterationOutcome reports how an iteration run ended. Skipped is set when
// the comment lost the admission race and no work was done.
type IterationOutcome struct {
	Skipped         bool
	IterationNumber int
	Success         bool
	FailedStep      string
	Err             string
	CommitSHA       string
	Explanation     string
	FilesChanged    int
	Duration        time.Duration
}

// Iterator runs the comment-to-commit workflow on an existing bot PR.
type Iterator struct {
	ws            *Workspace
	git           GitDriver
	gen           ChangeGenerator
	host          Host
	ledger        IterationLedger
	diffCharLimit int
}

// NewIterator wires an iteration workflow.
func NewIterator(ws *Workspace, git GitDriver, gen ChangeGenerator, host Host, led IterationLedger, diffCharLimit int) *Iterator {
	if diffCharLimit <= 0 {
		diffCharLimit = 5000
	}
	return &Iterator{
		ws:            ws,
		git:           git,
		gen:           gen,
		host:          host,
		ledger:        led,
		diffCharLimit: diffCharLimit,
	}
}

// Run processes one reviewer comment: admit it through the ledger, fetch the
// PR, update the local branch, generate and apply a change-set for the
// feedback, push the follow-up commit, and report back on the PR. The result
// comment is posted on success and on failure alike.
func (it *Iterator) Run(ctx context.Context, fb Feedback) (*IterationOutcome, error) {
	admitted, err := it.ledger.AdmitComment(ctx, fb.CommentID, fb.PRNumber, fb.Body, fb.Commenter)
	if err != nil {
		return nil, err
	}
	if !admitted {
		log.Printf("Comment %d on PR #%d already processed, skipping", fb.CommentID, fb.PRNumber)
		return &IterationOutcome{Skipped: true}, nil
	}

	number, err := it.ledger.NextIterationNumber(ctx, fb.PRNumber)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	log.Printf("Starting iteration %d on PR #%d (comment %d)", number, fb.PRNumber, fb.CommentID)

	pr, err := it.host.GetPullRequest(ctx, fb.PRNumber)
	if err != nil {
		return it.finish(ctx, fb, &IterationOutcome{
			IterationNumber: number,
			FailedStep:      "fetch_pr",
			Err:             fmt.Sprintf("fetch_pr: %v", err),
			Duration:        time.Since(start),
		})
	}

	lease := it.ws.Acquire()
	defer lease.Release()

	var (
		cs   *generator.ChangeSet
		diff string
		sha  string
	)

	steps := []step{
		{"update_branch", func(ctx context.Context) error {
			return it.git.Pull(ctx, pr.HeadRef)
		}},
		{"collect_diff", func(ctx context.Context) error {
			var err error
			diff, err = it.git.Diff(ctx, pr.BaseRef)
			return err
		}},
		{"generate", func(ctx context.Context) error {
			var err error
			cs, err = it.gen.Generate(ctx, it.buildPrompt(pr.Title, pr.Body, diff, fb))
			return err
		}},
		{"apply", func(ctx context.Context) error {
			return it.gen.Apply(cs)
		}},
		{"validate", func(ctx context.Context) error {
			return it.gen.Validate()
		}},
		{"commit", func(ctx context.Context) error {
			return it.git.Commit(ctx, cs.CommitMessage)
		}},
		{"resolve_sha", func(ctx context.Context) error {
			var err error
			sha, err = it.git.HeadSHA(ctx)
			return err
		}},
		{"push", func(ctx context.Context) error {
			return it.git.Push(ctx, pr.HeadRef)
		}},
	}

	// The tree stays wherever the run ended. A failed run leaves the PR
	// branch (possibly dirty) in place for inspection; the next run's
	// checkout and pull put the tree right.
	failed, runErr := runSteps(ctx, steps)

	out := &IterationOutcome{
		IterationNumber: number,
		Duration:        time.Since(start),
	}
	if runErr != nil {
		out.FailedStep = failed
		out.Err = fmt.Sprintf("%s: %v", failed, runErr)
		log.Printf("Iteration %d on PR #%d failed at %s: %v", number, fb.PRNumber, failed, runErr)
	} else {
		out.Success = true
		out.CommitSHA = sha
		out.Explanation = cs.Explanation
		out.FilesChanged = len(cs.Changes)
		log.Printf("Iteration %d on PR #%d completed in %s (%s)", number, fb.PRNumber, out.Duration.Round(time.Millisecond), shortSHA(sha))
	}

	return it.finish(ctx, fb, out)
}

// finish records the iteration and posts the result comment on the PR.
func (it *Iterator) finish(ctx context.Context, fb Feedback, out *IterationOutcome) (*IterationOutcome, error) {
	rec := &ledger.Iteration{
		PRNumber:        fb.PRNumber,
		IterationNumber: out.IterationNumber,
		CommentID:       fb.CommentID,
		CommentBody:     fb.Body,
		CommitSHA:       out.CommitSHA,
		Success:         out.Success,
		ErrorMessage:    out.Err,
		Duration:        out.Duration,
	}
	if err := it.ledger.RecordIteration(ctx, rec); err != nil {
		return out, err
	}

	if err := it.host.PostComment(ctx, fb.PRNumber, it.resultComment(out)); err != nil {
		log.Printf("Failed to post iteration result on PR #%d: %v", fb.PRNumber, err)
	}

	return out, nil
}

func (it *Iterator) resultComment(out *IterationOutcome) string {
	if out.Success {
		return fmt.Sprintf("✅ **Iteration %d** applied in commit `%s` (%d file(s) modified).\n\n%s",
			out.IterationNumber, shortSHA(out.CommitSHA), out.FilesChanged, out.Explanation)
	}
	return fmt.Sprintf("❌ **Iteration %d** failed at step `%s`:\n\n```\n%s\n```", out.IterationNumber, out.FailedStep, out.Err)
}

// buildPrompt assembles the incremental improvement prompt: what the PR set
// out to do, the current diff against base, and the reviewer's feedback.
func (it *Iterator) buildPrompt(title, body, diff string, fb Feedback) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You previously created a pull request titled %q.\n\n", title)
	if body != "" {
		fmt.Fprintf(&b, "## Pull Request Description\n\n%s\n\n", body)
	}

	fmt.Fprintf(&b, "## Current Changes (diff against base)\n\n```diff\n%s\n```\n\n", it.truncateDiff(diff))

	fmt.Fprintf(&b, "## Reviewer Feedback\n\n%s\n\n", fb.Body)
	if fb.IsReview && fb.FilePath != "" {
		fmt.Fprintf(&b, "The feedback was left on `%s`", fb.FilePath)
		if fb.DiffHunk != "" {
			fmt.Fprintf(&b, " at this location:\n\n```diff\n%s\n```", fb.DiffHunk)
		}
		b.WriteString("\n\n")
	}

	b.WriteString("Address the reviewer's feedback with a focused follow-up change to the same branch.")
	return b.String()
}

func (it *Iterator) truncateDiff(diff string) string {
	if len(diff) <= it.diffCharLimit {
		return diff
	}
	return diff[:it.diffCharLimit] + "\n... (diff truncated)"
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
