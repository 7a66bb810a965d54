// Package ledger persists accepted requests, per-PR iterations, and
// processed comments. It is the source of truth for webhook idempotency and
// for deciding whether a PR is bot-owned.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ImprovementRequest records one PR-creation workflow run.
type ImprovementRequest struct {
	ID             string
	ConversationID string
	Requester      string
	Prompt         string
	BranchName     string
	PRNumber       int // 0 when no PR was opened
	PRURL          string
	Success        bool
	ErrorMessage   string
	Duration       time.Duration
}

// Iteration records one attempt to refine a PR from a single comment.
type Iteration struct {
	PRNumber        int
	IterationNumber int
	CommentID       int64
	CommentBody     string
	CommitSHA       string // empty on failure
	Success         bool
	ErrorMessage    string
	Duration        time.Duration
}

// Ledger wraps the SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens (and initializes) the ledger database at path. Use ":memory:"
// for tests.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// One connection: every pool connection to ":memory:" gets its own
	// database, and a single writer avoids SQLITE_BUSY on concurrent inserts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(SchemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordRequest persists a completed improvement request. An ID is assigned
// when the caller left it empty.
func (l *Ledger) RecordRequest(ctx context.Context, req *ImprovementRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	var branch, prURL, errMsg sql.NullString
	var prNumber sql.NullInt64
	if req.BranchName != "" {
		branch = sql.NullString{String: req.BranchName, Valid: true}
	}
	if req.PRURL != "" {
		prURL = sql.NullString{String: req.PRURL, Valid: true}
	}
	if req.ErrorMessage != "" {
		errMsg = sql.NullString{String: req.ErrorMessage, Valid: true}
	}
	if req.PRNumber > 0 {
		prNumber = sql.NullInt64{Int64: int64(req.PRNumber), Valid: true}
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO improvement_requests
		 (id, conversation_id, requester, prompt, branch_name, pr_number, pr_url, success, error_message, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ConversationID, req.Requester, req.Prompt,
		branch, prNumber, prURL, req.Success, errMsg, req.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record improvement request: %w", err)
	}
	return nil
}

// IsBotPR reports whether the PR number belongs to a recorded improvement
// request, i.e. whether the bot owns that PR.
func (l *Ledger) IsBotPR(ctx context.Context, prNumber int) (bool, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM improvement_requests WHERE pr_number = ?`, prNumber,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to look up PR #%d: %w", prNumber, err)
	}
	return count > 0, nil
}

// RequestIDForPR returns the id of the improvement request that opened the
// PR, if any.
func (l *Ledger) RequestIDForPR(ctx context.Context, prNumber int) (string, bool, error) {
	var id string
	err := l.db.QueryRowContext(ctx,
		`SELECT id FROM improvement_requests WHERE pr_number = ? ORDER BY created_at LIMIT 1`, prNumber,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up request for PR #%d: %w", prNumber, err)
	}
	return id, true, nil
}

// NextIterationNumber returns MAX(iteration_number)+1 for the PR. Callers
// serialize allocation by holding the workspace lease.
func (l *Ledger) NextIterationNumber(ctx context.Context, prNumber int) (int, error) {
	var last sql.NullInt64
	err := l.db.QueryRowContext(ctx,
		`SELECT MAX(iteration_number) FROM pr_iterations WHERE pr_number = ?`, prNumber,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate iteration number for PR #%d: %w", prNumber, err)
	}
	return int(last.Int64) + 1, nil
}

// AdmitComment inserts a processed-comment row keyed on the comment id and
// reports whether this call won the insert. The UNIQUE constraint makes this
// safe under concurrent duplicate deliveries: exactly one caller is admitted.
func (l *Ledger) AdmitComment(ctx context.Context, commentID int64, prNumber int, body, commenter string) (bool, error) {
	requestID, _, err := l.RequestIDForPR(ctx, prNumber)
	if err != nil {
		return false, err
	}

	var link sql.NullString
	if requestID != "" {
		link = sql.NullString{String: requestID, Valid: true}
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pr_comments (comment_id, pr_number, comment_body, commenter_login, processed, request_id)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		commentID, prNumber, body, commenter, link,
	)
	if err != nil {
		return false, fmt.Errorf("failed to admit comment %d: %w", commentID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to admit comment %d: %w", commentID, err)
	}
	return rows == 1, nil
}

// IsCommentProcessed reports whether the comment id already has a processed
// row.
func (l *Ledger) IsCommentProcessed(ctx context.Context, commentID int64) (bool, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM pr_comments WHERE comment_id = ? AND processed = 1`, commentID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to look up comment %d: %w", commentID, err)
	}
	return count > 0, nil
}

// RecordIteration persists one iteration outcome.
func (l *Ledger) RecordIteration(ctx context.Context, it *Iteration) error {
	var sha, errMsg sql.NullString
	if it.CommitSHA != "" {
		sha = sql.NullString{String: it.CommitSHA, Valid: true}
	}
	if it.ErrorMessage != "" {
		errMsg = sql.NullString{String: it.ErrorMessage, Valid: true}
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO pr_iterations
		 (pr_number, iteration_number, comment_id, comment_body, commit_sha, success, error_message, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.PRNumber, it.IterationNumber, it.CommentID, it.CommentBody,
		sha, it.Success, errMsg, it.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record iteration: %w", err)
	}
	return nil
}

// IterationsForPR returns all iterations recorded for a PR in order.
func (l *Ledger) IterationsForPR(ctx context.Context, prNumber int) ([]Iteration, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT pr_number, iteration_number, comment_id, comment_body, commit_sha, success, error_message, duration_ms
		 FROM pr_iterations WHERE pr_number = ? ORDER BY iteration_number`, prNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list iterations for PR #%d: %w", prNumber, err)
	}
	defer rows.Close()

	var out []Iteration
	for rows.Next() {
		var it Iteration
		var sha, errMsg sql.NullString
		var durationMS sql.NullInt64
		if err := rows.Scan(&it.PRNumber, &it.IterationNumber, &it.CommentID, &it.CommentBody, &sha, &it.Success, &errMsg, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		it.CommitSHA = sha.String
		it.ErrorMessage = errMsg.String
		it.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		out = append(out, it)
	}
	return out, rows.Err()
}
