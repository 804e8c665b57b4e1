// Package github implements the ReviewAPI, AuthorProvider and CommentHooks
// ports using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.ReviewAPI      = (*Client)(nil)
	_ driven.AuthorProvider = (*Client)(nil)
	_ driven.CommentHooks   = (*Client)(nil)
)

// Client implements the remote review ports against the GitHub REST and
// GraphQL APIs.
type Client struct {
	gh         *gh.Client
	username   string
	token      string // Stored for GraphQL Authorization header.
	graphqlURL string // "https://api.github.com/graphql" in production; derived from baseURL in tests.

	authorMu sync.Mutex
	author   *model.Author
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token, username string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:         client,
		username:   username,
		token:      token,
		graphqlURL: "https://api.github.com/graphql",
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, username, token string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	// Derive graphqlURL from baseURL so httptest servers can intercept GraphQL requests.
	graphqlU := *u
	graphqlU.Path = "/graphql"

	return &Client{
		gh:         client,
		username:   username,
		token:      token,
		graphqlURL: graphqlU.String(),
	}, nil
}

// Username returns the login the client was configured with.
func (c *Client) Username() string {
	return c.username
}

// ListComments retrieves every inline review comment on a pull request.
// It handles pagination automatically and maps go-github types to domain
// comments in the PUBLISHED state.
func (c *Client) ListComments(ctx context.Context, key model.SessionKey) ([]model.Comment, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListCommentsOptions{
		Sort:        "created",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var all []model.Comment

	for {
		comments, resp, err := c.gh.PullRequests.ListComments(ctx, key.Owner, key.Repo, key.Number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing review comments for %s (page %d): %w", key, opts.Page, err)
		}

		logRateLimit(resp, key.FullName()+"/comments", opts.Page, len(comments))

		for _, comment := range comments {
			mapped, ok := mapComment(comment)
			if !ok {
				slog.Debug("skipping comment without a diff line", "session", key.String(), "comment", comment.GetID())
				continue
			}
			all = append(all, mapped)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if all == nil {
		all = []model.Comment{}
	}

	return all, nil
}

// EditComment replaces the body of a published review comment.
func (c *Client) EditComment(ctx context.Context, key model.SessionKey, serverID int64, body string) error {
	if err := key.Validate(); err != nil {
		return err
	}

	_, resp, err := c.gh.PullRequests.EditComment(ctx, key.Owner, key.Repo, serverID, &gh.PullRequestComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("editing comment %d on %s: %w", serverID, key, err)
	}

	logRateLimit(resp, key.FullName()+"/edit-comment", 0, 1)
	return nil
}

// DeleteComment removes a published review comment.
func (c *Client) DeleteComment(ctx context.Context, key model.SessionKey, serverID int64) error {
	if err := key.Validate(); err != nil {
		return err
	}

	resp, err := c.gh.PullRequests.DeleteComment(ctx, key.Owner, key.Repo, serverID)
	if err != nil {
		return fmt.Errorf("deleting comment %d on %s: %w", serverID, key, err)
	}

	logRateLimit(resp, key.FullName()+"/delete-comment", 0, 1)
	return nil
}

// CurrentAuthor returns the authenticated user. Without a token nobody is
// authenticated and it returns nil, nil. The first successful lookup is cached
// for the lifetime of the client.
func (c *Client) CurrentAuthor(ctx context.Context) (*model.Author, error) {
	if c.token == "" {
		return nil, nil
	}

	c.authorMu.Lock()
	defer c.authorMu.Unlock()

	if c.author != nil {
		author := *c.author
		return &author, nil
	}

	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("fetching authenticated user: %w", err)
	}
	logRateLimit(resp, "user", 0, 1)

	c.author = &model.Author{
		Username:   user.GetLogin(),
		AvatarURL:  user.GetAvatarURL(),
		ProfileURL: user.GetHTMLURL(),
	}
	author := *c.author
	return &author, nil
}

// ValidateToken verifies that the given GitHub personal access token is valid
// and returns the authenticated username on success. It creates a one-shot
// client with the provided token to avoid mutating the receiver's state.
func (c *Client) ValidateToken(ctx context.Context, token string) (string, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	tempClient := gh.NewClient(httpClient).WithAuthToken(token)
	tempClient.BaseURL = c.gh.BaseURL
	user, _, err := tempClient.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	return user.GetLogin(), nil
}

// allowedReactions are the reaction contents GitHub accepts on review comments.
var allowedReactions = map[string]bool{
	"+1": true, "-1": true, "laugh": true, "confused": true,
	"heart": true, "hooray": true, "rocket": true, "eyes": true,
}

// AddReaction adds a reaction to a published review comment.
func (c *Client) AddReaction(ctx context.Context, key model.SessionKey, serverID int64, reaction string) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if !allowedReactions[reaction] {
		return model.NewValidationError("reaction", "unsupported reaction %q", reaction)
	}

	_, resp, err := c.gh.Reactions.CreatePullRequestCommentReaction(ctx, key.Owner, key.Repo, serverID, reaction)
	if err != nil {
		return fmt.Errorf("reacting to comment %d on %s: %w", serverID, key, err)
	}

	logRateLimit(resp, key.FullName()+"/reaction", 0, 1)
	return nil
}

// mapComment converts a go-github PullRequestComment to a published domain
// comment. Comments that no longer map to a diff line (file-level comments)
// are reported as not ok.
func mapComment(c *gh.PullRequestComment) (model.Comment, bool) {
	line := c.GetLine()
	if line == 0 {
		// Outdated comments keep their original position only.
		line = c.GetOriginalLine()
	}
	if line == 0 || c.GetPath() == "" {
		return model.Comment{}, false
	}

	side := model.SideRight
	if strings.EqualFold(c.GetSide(), string(model.SideLeft)) {
		side = model.SideLeft
	}

	return model.Comment{
		ID:       model.RemoteCommentID(c.GetID()),
		ServerID: c.GetID(),
		Author: model.Author{
			Username:   c.GetUser().GetLogin(),
			AvatarURL:  c.GetUser().GetAvatarURL(),
			ProfileURL: c.GetUser().GetHTMLURL(),
		},
		CreatedAt:    c.GetCreatedAt().Time,
		UpdatedAt:    c.GetUpdatedAt().Time,
		URL:          c.GetHTMLURL(),
		Body:         c.GetBody(),
		Reactions:    mapReactions(c.Reactions),
		Path:         c.GetPath(),
		Line:         line,
		Side:         side,
		State:        model.CommentStatePublished,
		WasPublished: true,
	}, true
}

// mapReactions flattens GitHub's reaction rollup into token counts, keeping
// only reactions that were actually used.
func mapReactions(r *gh.Reactions) map[string]int {
	counts := map[string]int{
		"+1":       r.GetPlusOne(),
		"-1":       r.GetMinusOne(),
		"laugh":    r.GetLaugh(),
		"confused": r.GetConfused(),
		"heart":    r.GetHeart(),
		"hooray":   r.GetHooray(),
		"rocket":   r.GetRocket(),
		"eyes":     r.GetEyes(),
	}
	for token, n := range counts {
		if n == 0 {
			delete(counts, token)
		}
	}
	return counts
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 && resp.Rate.Limit > 0 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
