package github

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"
)

// PullDetails is the subset of PR metadata the workflows need.
type PullDetails struct {
	Number  int
	Title   string
	Body    string
	HeadRef string
	BaseRef string
	URL     string
}

// ContentEntry describes one file or directory returned by ListContents.
type ContentEntry struct {
	Name string
	Path string
	Type string // "file" or "dir"
	Size int
}

// Client performs hosting API operations against one fixed repository,
// authenticating each call with a fresh token from the broker.
type Client struct {
	tokens  TokenSource
	owner   string
	repo    string
	baseURL string // overridable for tests
}

// NewClient creates a client for owner/repo backed by the token source.
func NewClient(tokens TokenSource, owner, repo string) *Client {
	return &Client{
		tokens: tokens,
		owner:  owner,
		repo:   repo,
	}
}

// WithBaseURL points the client at a different API endpoint (tests).
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

func (c *Client) api(ctx context.Context) (*gh.Client, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	client := gh.NewClient(nil).WithAuthToken(token)
	if c.baseURL != "" {
		base := c.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		parsed, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid API base URL: %w", err)
		}
		client.BaseURL = parsed
	}
	return client, nil
}

// CreatePullRequest opens a PR and returns its number and URL.
func (c *Client) CreatePullRequest(ctx context.Context, title, body, head, base string) (int, string, error) {
	api, err := c.api(ctx)
	if err != nil {
		return 0, "", err
	}

	pr, _, err := api.PullRequests.Create(ctx, c.owner, c.repo, &gh.NewPullRequest{
		Title: gh.String(title),
		Body:  gh.String(body),
		Head:  gh.String(head),
		Base:  gh.String(base),
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to create PR: %w", err)
	}

	log.Printf("Created PR #%d: %s", pr.GetNumber(), pr.GetHTMLURL())
	return pr.GetNumber(), pr.GetHTMLURL(), nil
}

// GetPullRequest fetches PR metadata.
func (c *Client) GetPullRequest(ctx context.Context, number int) (*PullDetails, error) {
	api, err := c.api(ctx)
	if err != nil {
		return nil, err
	}

	pr, _, err := api.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch PR #%d: %w", number, err)
	}

	return &PullDetails{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		HeadRef: pr.GetHead().GetRef(),
		BaseRef: pr.GetBase().GetRef(),
		URL:     pr.GetHTMLURL(),
	}, nil
}

// PostComment posts a comment on the PR conversation.
func (c *Client) PostComment(ctx context.Context, number int, body string) error {
	api, err := c.api(ctx)
	if err != nil {
		return err
	}

	_, _, err = api.Issues.CreateComment(ctx, c.owner, c.repo, number, &gh.IssueComment{
		Body: gh.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to post comment on PR #%d: %w", number, err)
	}
	return nil
}

// ListContents lists the repository contents at path on the given ref.
func (c *Client) ListContents(ctx context.Context, path, ref string) ([]ContentEntry, error) {
	api, err := c.api(ctx)
	if err != nil {
		return nil, err
	}

	file, dir, _, err := api.Repositories.GetContents(ctx, c.owner, c.repo, path, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, fmt.Errorf("failed to list contents at %q: %w", path, err)
	}

	if file != nil {
		return []ContentEntry{{
			Name: file.GetName(),
			Path: file.GetPath(),
			Type: file.GetType(),
			Size: file.GetSize(),
		}}, nil
	}

	entries := make([]ContentEntry, 0, len(dir))
	for _, item := range dir {
		entries = append(entries, ContentEntry{
			Name: item.GetName(),
			Path: item.GetPath(),
			Type: item.GetType(),
			Size: item.GetSize(),
		})
	}
	return entries, nil
}
