package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultAPIBase = "https://api.github.com"

// CredentialError reports a token issuance failure. It is fatal to the
// calling step and is never retried here.
type CredentialError struct {
	Op  string
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential %s: %v", e.Op, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// TokenSource yields a bearer token for hosting API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// InstallationToken represents an installation access token
type InstallationToken struct {
	Token     string
	ExpiresAt time.Time
}

// AppAuth holds GitHub App authentication configuration and the cached
// installation token. Redundant concurrent refreshes are harmless (issuance
// is idempotent); the mutex only keeps the cache field itself consistent.
type AppAuth struct {
	AppID          string
	PrivateKey     string
	InstallationID string
	BaseURL        string
	SafetyMargin   time.Duration
	HTTPClient     *http.Client

	mu     sync.Mutex
	cached *InstallationToken
	now    func() time.Time
}

// NewAppAuth creates a broker for the given App identity. The cached token is
// treated as expired safetyMargin before the server-declared expiry.
func NewAppAuth(appID, privateKey, installationID string, safetyMargin time.Duration) *AppAuth {
	return &AppAuth{
		AppID:          appID,
		PrivateKey:     privateKey,
		InstallationID: installationID,
		BaseURL:        defaultAPIBase,
		SafetyMargin:   safetyMargin,
		HTTPClient:     &http.Client{Timeout: 10 * time.Second},
		now:            time.Now,
	}
}

// GenerateJWT creates a short-lived signed assertion for App authentication.
// The assertion has a fixed 10 minute lifetime and is never cached.
func (a *AppAuth) GenerateJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	appID, err := strconv.ParseInt(a.AppID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid app ID: %w", err)
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    strconv.FormatInt(appID, 10),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signedToken, nil
}

// Token returns a valid installation access token, reusing the cached one
// while it remains inside the foreshortened validity window.
func (a *AppAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && a.now().Before(a.cached.ExpiresAt) {
		return a.cached.Token, nil
	}

	tok, err := a.issue(ctx)
	if err != nil {
		return "", err
	}

	a.cached = tok
	return tok.Token, nil
}

// issue performs the full assertion-for-token exchange.
func (a *AppAuth) issue(ctx context.Context) (*InstallationToken, error) {
	jwtToken, err := a.GenerateJWT()
	if err != nil {
		return nil, &CredentialError{Op: "assertion", Err: err}
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", a.BaseURL, a.InstallationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, &CredentialError{Op: "token-request", Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, &CredentialError{Op: "token-exchange", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, &CredentialError{
			Op:  "token-exchange",
			Err: fmt.Errorf("API error: %d - %s", resp.StatusCode, string(body)),
		}
	}

	var result struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &CredentialError{Op: "token-decode", Err: err}
	}

	return &InstallationToken{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.Add(-a.SafetyMargin),
	}, nil
}
