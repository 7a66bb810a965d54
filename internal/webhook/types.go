package webhook

// Payload structures for the GitHub webhook events the gateway handles. Only
// the fields the filter chain and the iteration workflow read are declared.

// User is a GitHub account reference.
type User struct {
	Login string `json:"login"`
}

// PullRequest is the PR reference embedded in review comment events.
type PullRequest struct {
	Number int    `json:"number"`
	State  string `json:"state"`
	User   User   `json:"user"`
}

// Issue is the issue reference embedded in issue_comment events. PullRequest
// is non-nil only when the issue is actually a pull request.
type Issue struct {
	Number      int       `json:"number"`
	State       string    `json:"state"`
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

// Comment is a conversation comment on an issue or PR.
type Comment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
	User User   `json:"user"`
}

// ReviewComment is a comment left on a specific diff location.
type ReviewComment struct {
	ID       int64  `json:"id"`
	Body     string `json:"body"`
	User     User   `json:"user"`
	Path     string `json:"path"`
	DiffHunk string `json:"diff_hunk"`
}

// IssueCommentEvent is the payload of an issue_comment webhook delivery.
type IssueCommentEvent struct {
	Action  string  `json:"action"`
	Issue   Issue   `json:"issue"`
	Comment Comment `json:"comment"`
}

// ReviewCommentEvent is the payload of a pull_request_review_comment
// webhook delivery.
type ReviewCommentEvent struct {
	Action      string        `json:"action"`
	PullRequest PullRequest   `json:"pull_request"`
	Comment     ReviewComment `json:"comment"`
}
