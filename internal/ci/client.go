// Package ci talks to GitHub: workflow dispatch, run status and releases.
package ci

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v58/github"
	"golang.org/x/oauth2"
)

var ErrMissingToken = errors.New("GITHUB_TOKEN must be set")

type Client struct {
	logger *slog.Logger
	client *github.Client
	owner  string
	repo   string

	lookupAttempts uint
	lookupDelay    time.Duration
	retryAttempts  uint
	retryDelay     time.Duration

	baseURL string
}

type Option func(*Client)

// WithLookup configures how long Dispatch waits for the new run to show up.
func WithLookup(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.lookupAttempts = attempts
		c.lookupDelay = delay
	}
}

// WithRetry configures retries of write calls on server errors.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// WithBaseURL points New at a GitHub Enterprise Server instead of github.com.
// Uploads go to the same host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// New creates a client authenticated with token for the "owner/repo" slug.
func New(ctx context.Context, token, repoSlug string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = 30 * time.Second
	c, err := NewWithGitHub(github.NewClient(tc), repoSlug, logger, opts...)
	if err != nil {
		return nil, err
	}
	if c.baseURL != "" {
		gh, err := c.client.WithEnterpriseURLs(c.baseURL, c.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub URL %q: %w", c.baseURL, err)
		}
		c.client = gh
	}
	return c, nil
}

// NewWithGitHub wraps an existing go-github client.
func NewWithGitHub(gh *github.Client, repoSlug string, logger *slog.Logger, opts ...Option) (*Client, error) {
	owner, repo, err := ParseRepo(repoSlug)
	if err != nil {
		return nil, err
	}
	c := &Client{
		logger:         logger,
		client:         gh,
		owner:          owner,
		repo:           repo,
		lookupAttempts: 10,
		lookupDelay:    2 * time.Second,
		retryAttempts:  3,
		retryDelay:     time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ParseRepo splits "owner/repo".
func ParseRepo(slug string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(slug), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo %q, expected 'owner/repo'", slug)
	}
	return parts[0], parts[1], nil
}

func (c *Client) Repo() string {
	return c.owner + "/" + c.repo
}

// transient reports whether a GitHub error is worth retrying.
func transient(err error) bool {
	if err == nil {
		return false
	}
	var stop permanentError
	if errors.As(err, &stop) {
		return false
	}
	var rle *github.RateLimitError
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &rle) || errors.As(err, &abuse) {
		return true
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) {
		return er.Response != nil && er.Response.StatusCode >= http.StatusInternalServerError
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// transport level failures have no response at all
	return true
}

func notFound(err error) bool {
	var er *github.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound
}

// permanentError marks a failure that must not be retried.
type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }

func (e permanentError) Unwrap() error { return e.err }

func retryStop(err error) error {
	return permanentError{err: err}
}
