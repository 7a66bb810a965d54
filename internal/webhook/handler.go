// Package webhook is the event gateway: it authenticates GitHub webhook
// deliveries and runs the filter chain that decides which reviewer comments
// reach the iteration workflow. Every filter fails closed.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/autodev/prbot/internal/improve"
)

// GatewayLedger is the read-only ledger view the filter chain needs. The
// processed-comment check here is advisory; the iteration workflow performs
// the authoritative atomic admission.
type GatewayLedger interface {
	IsBotPR(ctx context.Context, prNumber int) (bool, error)
	IsCommentProcessed(ctx context.Context, commentID int64) (bool, error)
}

// Dispatcher hands admitted feedback to the iteration workflow, typically on
// a background goroutine so the webhook response returns promptly.
type Dispatcher interface {
	Dispatch(fb improve.Feedback)
}

// Handler authenticates and filters webhook deliveries.
type Handler struct {
	secret     string
	ownerLogin string
	ledger     GatewayLedger
	dispatcher Dispatcher
}

// NewHandler creates the gateway handler.
func NewHandler(secret, ownerLogin string, ledger GatewayLedger, dispatcher Dispatcher) *Handler {
	return &Handler{
		secret:     secret,
		ownerLogin: ownerLogin,
		ledger:     ledger,
		dispatcher: dispatcher,
	}
}

// Handle processes POST /webhooks/github.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		log.Printf("Webhook secret not configured, rejecting delivery")
		respond(w, http.StatusInternalServerError, "webhook secret not configured")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respond(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if !VerifySignature(body, signature, h.secret) {
		log.Printf("Rejected webhook delivery: missing or invalid signature")
		respond(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event := r.Header.Get("X-GitHub-Event")
	switch event {
	case "ping":
		respond(w, http.StatusOK, "pong")
	case "issue_comment":
		h.handleIssueComment(w, r, body)
	case "pull_request_review_comment":
		h.handleReviewComment(w, r, body)
	default:
		respond(w, http.StatusOK, "ignored")
	}
}

func (h *Handler) handleIssueComment(w http.ResponseWriter, r *http.Request, body []byte) {
	var ev IssueCommentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		respond(w, http.StatusBadRequest, "malformed payload")
		return
	}

	if ev.Issue.PullRequest == nil {
		respond(w, http.StatusOK, "ignored: not a pull request comment")
		return
	}

	h.filterAndDispatch(w, r, ev.Action, improve.Feedback{
		PRNumber:  ev.Issue.Number,
		CommentID: ev.Comment.ID,
		Body:      ev.Comment.Body,
		Commenter: ev.Comment.User.Login,
	})
}

func (h *Handler) handleReviewComment(w http.ResponseWriter, r *http.Request, body []byte) {
	var ev ReviewCommentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		respond(w, http.StatusBadRequest, "malformed payload")
		return
	}

	h.filterAndDispatch(w, r, ev.Action, improve.Feedback{
		PRNumber:  ev.PullRequest.Number,
		CommentID: ev.Comment.ID,
		Body:      ev.Comment.Body,
		Commenter: ev.Comment.User.Login,
		IsReview:  true,
		FilePath:  ev.Comment.Path,
		DiffHunk:  ev.Comment.DiffHunk,
	})
}

// filterAndDispatch runs the shared filter chain: comment action, PR
// ownership, commenter identity, and a duplicate check. Anything that does
// not pass is acknowledged and dropped.
func (h *Handler) filterAndDispatch(w http.ResponseWriter, r *http.Request, action string, fb improve.Feedback) {
	if action != "created" && action != "edited" {
		respond(w, http.StatusOK, "ignored: action "+action)
		return
	}

	ctx := r.Context()

	botOwned, err := h.ledger.IsBotPR(ctx, fb.PRNumber)
	if err != nil {
		log.Printf("Ledger lookup failed for PR #%d: %v", fb.PRNumber, err)
		respond(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}
	if !botOwned {
		respond(w, http.StatusOK, "ignored: not a bot pull request")
		return
	}

	if fb.Commenter != h.ownerLogin {
		log.Printf("Ignoring comment %d from %q on PR #%d", fb.CommentID, fb.Commenter, fb.PRNumber)
		respond(w, http.StatusOK, "ignored: commenter not authorized")
		return
	}

	processed, err := h.ledger.IsCommentProcessed(ctx, fb.CommentID)
	if err != nil {
		log.Printf("Ledger lookup failed for comment %d: %v", fb.CommentID, err)
		respond(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}
	if processed {
		respond(w, http.StatusOK, "ignored: comment already processed")
		return
	}

	log.Printf("Dispatching comment %d on PR #%d for iteration", fb.CommentID, fb.PRNumber)
	h.dispatcher.Dispatch(fb)
	respond(w, http.StatusOK, "accepted")
}

func respond(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
