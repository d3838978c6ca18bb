// Package forge wraps the GitHub Issues API behind the gateway error
// taxonomy, using a shared http.Client with a bounded per-request timeout.
package forge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v63/github"

	"synctl/internal/gateway"
)

const apiTimeout = 30 * time.Second

// Client talks to GitHub Issues for a single owner/repo.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

// New builds a Client authenticated with token, targeting "owner/repo".
func New(token, ownerRepo string) (*Client, error) {
	parts := strings.SplitN(ownerRepo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid repository %q: expected \"owner/repo\"", ownerRepo)
	}

	httpClient := &http.Client{
		Timeout: apiTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		gh:    github.NewClient(httpClient).WithAuthToken(token),
		owner: parts[0],
		repo:  parts[1],
	}, nil
}

// Issue is the gateway-shape read/write representation of a forge issue.
type Issue struct {
	Number        int
	Title         string
	Body          string
	State         string
	StateReason   string
	Labels        []string
	AssigneeLogin string
	UpdatedAt     time.Time
}

func fromGithubIssue(gi *github.Issue) Issue {
	issue := Issue{
		Number: gi.GetNumber(),
		Title:  gi.GetTitle(),
		Body:   gi.GetBody(),
		State:  gi.GetState(),
	}
	if gi.StateReason != nil {
		issue.StateReason = *gi.StateReason
	}
	if gi.Assignee != nil {
		issue.AssigneeLogin = gi.Assignee.GetLogin()
	}
	if gi.UpdatedAt != nil {
		issue.UpdatedAt = gi.UpdatedAt.Time
	}
	for _, l := range gi.Labels {
		issue.Labels = append(issue.Labels, l.GetName())
	}
	return issue
}

// CreateIssue creates a new issue and returns its assigned number.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels, assignees []string) (Issue, error) {
	req := &github.IssueRequest{Title: &title, Body: &body}
	if len(labels) > 0 {
		req.Labels = &labels
	}
	if len(assignees) > 0 {
		req.Assignees = &assignees
	}
	var gi *github.Issue
	err := c.withRateLimitRetry(ctx, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		gi, resp, err = c.gh.Issues.Create(ctx, c.owner, c.repo, req)
		return resp, err
	})
	if err != nil {
		return Issue{}, err
	}
	return fromGithubIssue(gi), nil
}

// GetIssue fetches a single issue by number.
func (c *Client) GetIssue(ctx context.Context, number int) (Issue, error) {
	var gi *github.Issue
	err := c.withRateLimitRetry(ctx, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		gi, resp, err = c.gh.Issues.Get(ctx, c.owner, c.repo, number)
		return resp, err
	})
	if err != nil {
		return Issue{}, err
	}
	return fromGithubIssue(gi), nil
}

// UpdateIssue patches title/body/state/labels/assignee on an existing issue.
func (c *Client) UpdateIssue(ctx context.Context, number int, title, body, state, stateReason string, labels, assignees []string) (Issue, error) {
	req := &github.IssueRequest{}
	if title != "" {
		req.Title = &title
	}
	req.Body = &body
	if state != "" {
		req.State = &state
	}
	if stateReason != "" {
		req.StateReason = &stateReason
	}
	req.Labels = &labels
	req.Assignees = &assignees

	gi, resp, err := c.gh.Issues.Edit(ctx, c.owner, c.repo, number, req)
	if err != nil {
		return Issue{}, classify(err, resp)
	}
	return fromGithubIssue(gi), nil
}

// CloseIssue closes an issue with the given state reason ("completed" or
// "not_planned").
func (c *Client) CloseIssue(ctx context.Context, number int, stateReason string) (Issue, error) {
	closed := "closed"
	return c.UpdateIssue(ctx, number, "", "", closed, stateReason, nil, nil)
}

// ListIssuesSince lists issues updated at or after since, for the
// Reconciler's incremental pull.
func (c *Client) ListIssuesSince(ctx context.Context, since time.Time) ([]Issue, error) {
	opt := &github.IssueListByRepoOptions{
		State: "all",
		Since: since,
		Sort:  "updated",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var all []Issue
	for {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, c.owner, c.repo, opt)
		if err != nil {
			return nil, classify(err, resp)
		}
		for _, gi := range issues {
			if gi.PullRequestLinks != nil {
				continue
			}
			all = append(all, fromGithubIssue(gi))
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// AddComment posts a comment on an issue.
func (c *Client) AddComment(ctx context.Context, number int, body string) error {
	_, resp, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{Body: &body})
	if err != nil {
		return classify(err, resp)
	}
	return nil
}

// Comment is the gateway-shape representation of an issue comment.
type Comment struct {
	Body      string
	Author    string
	CreatedAt time.Time
}

// ListComments lists every comment on an issue.
func (c *Client) ListComments(ctx context.Context, number int) ([]Comment, error) {
	ghComments, resp, err := c.gh.Issues.ListComments(ctx, c.owner, c.repo, number, nil)
	if err != nil {
		return nil, classify(err, resp)
	}
	comments := make([]Comment, 0, len(ghComments))
	for _, gc := range ghComments {
		comments = append(comments, Comment{
			Body:      gc.GetBody(),
			Author:    gc.GetUser().GetLogin(),
			CreatedAt: gc.GetCreatedAt().Time,
		})
	}
	return comments, nil
}

// withRateLimitRetry runs call once; on a primary rate limit it sleeps
// until the reported reset time and retries exactly once before
// surfacing ErrRateLimited
func (c *Client) withRateLimitRetry(ctx context.Context, call func() (*github.Response, error)) error {
	resp, err := call()
	if err == nil {
		return nil
	}
	var rl *github.RateLimitError
	if errors.As(err, &rl) {
		wait := time.Until(rl.Rate.Reset.Time)
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			if _, err2 := call(); err2 == nil {
				return nil
			}
		}
	}
	return classify(err, resp)
}

// classify maps a go-github error into the shared gateway taxonomy.
func classify(err error, resp *github.Response) error {
	var rl *github.RateLimitError
	if errors.As(err, &rl) {
		return fmt.Errorf("%w: resets at %s", gateway.ErrRateLimited, rl.Rate.Reset.Time)
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return fmt.Errorf("%w: secondary rate limit", gateway.ErrRateLimited)
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", gateway.ErrUnauthorized, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", gateway.ErrNotFound, err)
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %v", gateway.ErrConflict, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", gateway.ErrRateLimited, err)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %v", gateway.ErrInvalidRequest, err)
		default:
			if ghErr.Response.StatusCode >= 500 {
				return fmt.Errorf("%w: %v", gateway.ErrTransient, err)
			}
		}
	}

	if resp == nil {
		return fmt.Errorf("%w: %v", gateway.ErrTransient, err)
	}
	return fmt.Errorf("%w: %v", gateway.ErrTransient, err)
}
