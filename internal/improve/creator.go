package improve

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/autodev/prbot/internal/generator"
	"github.com/autodev/prbot/internal/github"
	"github.com/autodev/prbot/internal/ledger"
)

// GitDriver is the subset of git operations the workflows use.
type GitDriver interface {
	EnsureClean(ctx context.Context) (bool, error)
	Pull(ctx context.Context, branch string) error
	CreateBranch(ctx context.Context, name, base string) error
	Checkout(ctx context.Context, branch string) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context, branch string) error
	Diff(ctx context.Context, base string) (string, error)
	HeadSHA(ctx context.Context) (string, error)
}

// ChangeGenerator produces, applies, and validates change-sets.
type ChangeGenerator interface {
	Generate(ctx context.Context, prompt string) (*generator.ChangeSet, error)
	Apply(cs *generator.ChangeSet) error
	Validate() error
}

// Host is the subset of hosting API operations the workflows use.
type Host interface {
	CreatePullRequest(ctx context.Context, title, body, head, base string) (int, string, error)
	GetPullRequest(ctx context.Context, number int) (*github.PullDetails, error)
	PostComment(ctx context.Context, number int, body string) error
}

// RequestRecorder persists completed improvement requests.
type RequestRecorder interface {
	RecordRequest(ctx context.Context, req *ledger.ImprovementRequest) error
}

// Request is one owner-initiated improvement request.
type Request struct {
	ConversationID string
	Requester      string
	Prompt         string
}

// Outcome reports how a creation run ended. A failed run is still a normal
// Outcome; the error return of Run is reserved for authorization and
// persistence failures.
type Outcome struct {
	RequestID   string
	Success     bool
	FailedStep  string
	Err         string
	BranchName  string
	Explanation string
	PRNumber    int
	PRURL       string
	Duration    time.Duration
}

// Creator runs the full prompt-to-pull-request workflow.
type Creator struct {
	ws         *Workspace
	git        GitDriver
	gen        ChangeGenerator
	host       Host
	ledger     RequestRecorder
	baseBranch string
	ownerLogin string
}

// NewCreator wires a creation workflow.
func NewCreator(ws *Workspace, git GitDriver, gen ChangeGenerator, host Host, rec RequestRecorder, baseBranch, ownerLogin string) *Creator {
	return &Creator{
		ws:         ws,
		git:        git,
		gen:        gen,
		host:       host,
		ledger:     rec,
		baseBranch: baseBranch,
		ownerLogin: ownerLogin,
	}
}

// Run executes one improvement request end to end: pull the base branch,
// verify the tree is clean, generate a change-set, branch, apply, validate,
// commit, push, and open the PR. Every accepted request gets a ledger row
// whether it succeeded or not. Requests from anyone but the configured owner
// are rejected before any work happens.
func (c *Creator) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Requester != c.ownerLogin {
		log.Printf("Rejecting improvement request from %q: not the configured owner", req.Requester)
		return nil, fmt.Errorf("requester %q is not authorized", req.Requester)
	}

	start := time.Now()
	log.Printf("Starting improvement request from %s: %.80q", req.Requester, req.Prompt)

	lease := c.ws.Acquire()
	defer lease.Release()

	var (
		cs       *generator.ChangeSet
		branched bool
		prNumber int
		prURL    string
	)

	steps := []step{
		{"pull_base", func(ctx context.Context) error {
			return c.git.Pull(ctx, c.baseBranch)
		}},
		{"clean_check", func(ctx context.Context) error {
			clean, err := c.git.EnsureClean(ctx)
			if err != nil {
				return err
			}
			if !clean {
				return fmt.Errorf("working tree has uncommitted changes")
			}
			return nil
		}},
		{"generate", func(ctx context.Context) error {
			var err error
			cs, err = c.gen.Generate(ctx, req.Prompt)
			return err
		}},
		{"create_branch", func(ctx context.Context) error {
			if err := c.git.CreateBranch(ctx, cs.BranchName, c.baseBranch); err != nil {
				return err
			}
			branched = true
			return nil
		}},
		{"apply", func(ctx context.Context) error {
			return c.gen.Apply(cs)
		}},
		{"validate", func(ctx context.Context) error {
			return c.gen.Validate()
		}},
		{"commit", func(ctx context.Context) error {
			return c.git.Commit(ctx, cs.CommitMessage)
		}},
		{"push", func(ctx context.Context) error {
			return c.git.Push(ctx, cs.BranchName)
		}},
		{"create_pr", func(ctx context.Context) error {
			var err error
			prNumber, prURL, err = c.host.CreatePullRequest(ctx, cs.PRTitle, cs.PRBody, cs.BranchName, c.baseBranch)
			return err
		}},
	}

	failed, runErr := runSteps(ctx, steps)

	// Always leave the tree on the base branch for the next run. The failed
	// branch itself is kept for inspection.
	if branched {
		if err := c.git.Checkout(ctx, c.baseBranch); err != nil {
			log.Printf("Failed to return to %s: %v", c.baseBranch, err)
		}
	}

	out := &Outcome{Duration: time.Since(start)}
	if cs != nil {
		out.BranchName = cs.BranchName
		out.Explanation = cs.Explanation
	}
	if runErr != nil {
		out.FailedStep = failed
		out.Err = fmt.Sprintf("%s: %v", failed, runErr)
		log.Printf("Improvement request failed at %s after %s: %v", failed, out.Duration.Round(time.Millisecond), runErr)
	} else {
		out.Success = true
		out.PRNumber = prNumber
		out.PRURL = prURL
		log.Printf("Improvement request completed in %s: PR #%d", out.Duration.Round(time.Millisecond), prNumber)
	}

	rec := &ledger.ImprovementRequest{
		ConversationID: req.ConversationID,
		Requester:      req.Requester,
		Prompt:         req.Prompt,
		BranchName:     out.BranchName,
		PRNumber:       out.PRNumber,
		PRURL:          out.PRURL,
		Success:        out.Success,
		ErrorMessage:   out.Err,
		Duration:       out.Duration,
	}
	if err := c.ledger.RecordRequest(ctx, rec); err != nil {
		return out, err
	}
	out.RequestID = rec.ID

	return out, nil
}
