// Package git drives the version-control executable against one fixed
// working tree. Expected failures (dirty tree, merge conflicts, rejected
// pushes) surface as *OpError values carrying the operation name and raw
// stderr; only a failure to start the subprocess is anything else.
//
// Operations are not safe to interleave across workflows: callers must hold
// the workspace lease for the full step sequence of a run.
package git

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Author is the commit identity used for generated commits.
type Author struct {
	Name  string
	Email string
}

func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// OpError reports a git operation that exited non-zero.
type OpError struct {
	Op     string
	Stderr string
}

func (e *OpError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" {
		return fmt.Sprintf("git %s failed", e.Op)
	}
	return fmt.Sprintf("git %s failed: %s", e.Op, detail)
}

// Driver executes git operations against a single working directory.
type Driver struct {
	dir    string
	author Author
	runner CommandRunner
}

// NewDriver creates a driver for the given working tree.
func NewDriver(dir string, author Author) *Driver {
	return &Driver{
		dir:    dir,
		author: author,
		runner: &RealCommandRunner{},
	}
}

// NewDriverWithRunner creates a driver with a custom runner (useful for tests).
func NewDriverWithRunner(dir string, author Author, runner CommandRunner) *Driver {
	return &Driver{
		dir:    dir,
		author: author,
		runner: runner,
	}
}

// Dir returns the working tree path.
func (d *Driver) Dir() string {
	return d.dir
}

func (d *Driver) run(ctx context.Context, op string, args ...string) (string, error) {
	stdout, stderr, code, err := d.runner.Run(ctx, d.dir, "git", args...)
	if err != nil {
		return "", fmt.Errorf("failed to run git %s: %w", op, err)
	}
	if code != 0 {
		log.Printf("git %s exited %d: %s", op, code, strings.TrimSpace(stderr))
		return stdout, &OpError{Op: op, Stderr: stderr}
	}
	return stdout, nil
}

// EnsureClean reports whether the working tree has no uncommitted changes.
func (d *Driver) EnsureClean(ctx context.Context) (bool, error) {
	out, err := d.run(ctx, "status", "status", "--porcelain")
	if err != nil {
		return false, err
	}
	clean := strings.TrimSpace(out) == ""
	if !clean {
		log.Printf("Working tree is not clean:\n%s", out)
	}
	return clean, nil
}

// Pull checks out the branch and pulls the latest changes from origin.
func (d *Driver) Pull(ctx context.Context, branch string) error {
	if _, err := d.run(ctx, "checkout", "checkout", branch); err != nil {
		return err
	}
	_, err := d.run(ctx, "pull", "pull", "origin", branch)
	return err
}

// CreateBranch creates and checks out a new branch from origin/<base>.
func (d *Driver) CreateBranch(ctx context.Context, name, base string) error {
	_, err := d.run(ctx, "create-branch", "checkout", "-b", name, "origin/"+base)
	return err
}

// Checkout switches to an existing branch.
func (d *Driver) Checkout(ctx context.Context, branch string) error {
	_, err := d.run(ctx, "checkout", "checkout", branch)
	return err
}

// Commit stages everything and commits with the configured author identity.
func (d *Driver) Commit(ctx context.Context, message string) error {
	if _, err := d.run(ctx, "add", "add", "-A"); err != nil {
		return err
	}
	_, err := d.run(ctx, "commit", "commit", "-m", message, "--author", d.author.String())
	return err
}

// Push pushes the branch to origin, setting the upstream.
func (d *Driver) Push(ctx context.Context, branch string) error {
	_, err := d.run(ctx, "push", "push", "-u", "origin", branch)
	return err
}

// Diff returns the diff of HEAD against the base branch.
func (d *Driver) Diff(ctx context.Context, base string) (string, error) {
	return d.run(ctx, "diff", "diff", base+"...HEAD")
}

// HeadSHA returns the commit SHA of HEAD.
func (d *Driver) HeadSHA(ctx context.Context) (string, error) {
	out, err := d.run(ctx, "rev-parse", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the name of the checked-out branch.
func (d *Driver) CurrentBranch(ctx context.Context) (string, error) {
	out, err := d.run(ctx, "rev-parse", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
