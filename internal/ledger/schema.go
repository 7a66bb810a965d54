package ledger

// SchemaSQL is the authoritative schema for the ledger database. Tests load
// it through Open against an in-memory database, so repository code and
// tests can never drift apart.
const SchemaSQL = `
-- Accepted improvement requests; one row per completed workflow run,
-- written once at workflow completion and never mutated afterward.
CREATE TABLE IF NOT EXISTS improvement_requests (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	requester TEXT NOT NULL,
	prompt TEXT NOT NULL,
	branch_name TEXT,
	pr_number INTEGER,
	pr_url TEXT,
	success INTEGER NOT NULL,
	error_message TEXT,
	duration_ms INTEGER,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_improvement_requests_pr_number ON improvement_requests(pr_number);
CREATE INDEX IF NOT EXISTS idx_improvement_requests_requester ON improvement_requests(requester);

-- One row per processed reviewer comment on a bot-owned PR.
CREATE TABLE IF NOT EXISTS pr_iterations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pr_number INTEGER NOT NULL,
	iteration_number INTEGER NOT NULL,
	comment_id INTEGER NOT NULL,
	comment_body TEXT NOT NULL,
	commit_sha TEXT,
	success INTEGER NOT NULL,
	error_message TEXT,
	duration_ms INTEGER,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_pr_iterations_pr_number ON pr_iterations(pr_number);
CREATE INDEX IF NOT EXISTS idx_pr_iterations_comment_id ON pr_iterations(comment_id);

-- Comment admission records. The UNIQUE constraint on comment_id is the
-- idempotency barrier for webhook replays: INSERT OR IGNORE against it
-- admits exactly one delivery per comment regardless of concurrency.
CREATE TABLE IF NOT EXISTS pr_comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	comment_id INTEGER NOT NULL UNIQUE,
	pr_number INTEGER NOT NULL,
	comment_body TEXT NOT NULL,
	commenter_login TEXT NOT NULL,
	processed INTEGER NOT NULL DEFAULT 0,
	request_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_pr_comments_pr_number ON pr_comments(pr_number);
`
