package improve

import (
	"context"
	"fmt"

	"github.com/autodev/prbot/internal/generator"
	"github.com/autodev/prbot/internal/github"
	"github.com/autodev/prbot/internal/ledger"
)

// fakeGit records operations in order and fails the ones scripted in failOn.
type fakeGit struct {
	ops    []string
	failOn map[string]error
	dirty  bool
	diff   string
	sha    string
}

func (f *fakeGit) op(name string) error {
	f.ops = append(f.ops, name)
	if err, ok := f.failOn[name]; ok {
		return err
	}
	return nil
}

func (f *fakeGit) EnsureClean(_ context.Context) (bool, error) {
	if err := f.op("ensure-clean"); err != nil {
		return false, err
	}
	return !f.dirty, nil
}

func (f *fakeGit) Pull(_ context.Context, branch string) error {
	return f.op("pull " + branch)
}

func (f *fakeGit) CreateBranch(_ context.Context, name, base string) error {
	return f.op(fmt.Sprintf("create-branch %s %s", name, base))
}

func (f *fakeGit) Checkout(_ context.Context, branch string) error {
	return f.op("checkout " + branch)
}

func (f *fakeGit) Commit(_ context.Context, message string) error {
	return f.op("commit " + message)
}

func (f *fakeGit) Push(_ context.Context, branch string) error {
	return f.op("push " + branch)
}

func (f *fakeGit) Diff(_ context.Context, base string) (string, error) {
	if err := f.op("diff " + base); err != nil {
		return "", err
	}
	return f.diff, nil
}

func (f *fakeGit) HeadSHA(_ context.Context) (string, error) {
	if err := f.op("head-sha"); err != nil {
		return "", err
	}
	if f.sha == "" {
		return "abc123def4567890", nil
	}
	return f.sha, nil
}

func (f *fakeGit) hasOp(prefix string) bool {
	for _, op := range f.ops {
		if op == prefix || len(op) > len(prefix) && op[:len(prefix)+1] == prefix+" " {
			return true
		}
	}
	return false
}

// fakeGen returns a scripted change-set and records the prompt it saw.
type fakeGen struct {
	cs          *generator.ChangeSet
	generateErr error
	applyErr    error
	validateErr error

	prompt string
}

func (f *fakeGen) Generate(_ context.Context, prompt string) (*generator.ChangeSet, error) {
	f.prompt = prompt
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	if f.cs != nil {
		return f.cs, nil
	}
	return &generator.ChangeSet{
		Success:       true,
		Changes:       []generator.FileChange{{Path: "a.go", Action: generator.ActionModify, Content: "x"}},
		Explanation:   "did the thing",
		BranchName:    "do-the-thing",
		CommitMessage: "Do the thing",
		PRTitle:       "Do the thing",
		PRBody:        "body",
	}, nil
}

func (f *fakeGen) Apply(_ *generator.ChangeSet) error {
	return f.applyErr
}

func (f *fakeGen) Validate() error {
	return f.validateErr
}

// fakeHost scripts hosting API results and records posted comments.
type fakeHost struct {
	pr        *github.PullDetails
	getErr    error
	createErr error

	createdTitle string
	createdHead  string
	createdBase  string
	comments     []string
}

func (f *fakeHost) CreatePullRequest(_ context.Context, title, body, head, base string) (int, string, error) {
	if f.createErr != nil {
		return 0, "", f.createErr
	}
	f.createdTitle = title
	f.createdHead = head
	f.createdBase = base
	return 42, "https://example.com/pr/42", nil
}

func (f *fakeHost) GetPullRequest(_ context.Context, number int) (*github.PullDetails, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.pr != nil {
		return f.pr, nil
	}
	return &github.PullDetails{
		Number:  number,
		Title:   "Do the thing",
		Body:    "original body",
		HeadRef: "do-the-thing",
		BaseRef: "main",
	}, nil
}

func (f *fakeHost) PostComment(_ context.Context, _ int, body string) error {
	f.comments = append(f.comments, body)
	return nil
}

// fakeRecorder captures recorded improvement requests.
type fakeRecorder struct {
	records   []*ledger.ImprovementRequest
	recordErr error
}

func (f *fakeRecorder) RecordRequest(_ context.Context, req *ledger.ImprovementRequest) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	if req.ID == "" {
		req.ID = "req-1"
	}
	f.records = append(f.records, req)
	return nil
}

// fakeIterLedger scripts comment admission and captures iterations.
type fakeIterLedger struct {
	admit      bool
	next       int
	iterations []*ledger.Iteration
}

func (f *fakeIterLedger) AdmitComment(_ context.Context, _ int64, _ int, _, _ string) (bool, error) {
	return f.admit, nil
}

func (f *fakeIterLedger) NextIterationNumber(_ context.Context, _ int) (int, error) {
	if f.next == 0 {
		return 1, nil
	}
	return f.next, nil
}

func (f *fakeIterLedger) RecordIteration(_ context.Context, it *ledger.Iteration) error {
	f.iterations = append(f.iterations, it)
	return nil
}
