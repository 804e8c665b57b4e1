package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// PublishReview creates a pull request review carrying every submitted
// comment, then reads the review's comments back to learn their server ids.
// If the CommitID in the submission is empty, the current PR head SHA is
// fetched first to avoid submitting against a stale commit.
//
// A failure after the review was created is reported as a
// *model.ConsistencyError: the comments exist remotely but cannot be mapped.
func (c *Client) PublishReview(ctx context.Context, key model.SessionKey, sub model.ReviewSubmission) (*model.PublishResponse, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	// Re-fetch the head SHA if not provided to avoid 422 "commit not found" errors.
	commitID := sub.CommitID
	if commitID == "" {
		pr, _, err := c.gh.PullRequests.Get(ctx, key.Owner, key.Repo, key.Number)
		if err != nil {
			return nil, fmt.Errorf("fetching PR head SHA before review submit: %w", err)
		}
		commitID = pr.GetHead().GetSHA()
	}

	draftComments := make([]*gh.DraftReviewComment, 0, len(sub.Comments))
	for _, sc := range sub.Comments {
		draftComments = append(draftComments, &gh.DraftReviewComment{
			Path: gh.Ptr(sc.Path),
			Body: gh.Ptr(sc.Body),
			Line: gh.Ptr(sc.Line),
			Side: gh.Ptr(string(sc.Side)),
		})
	}

	reviewReq := &gh.PullRequestReviewRequest{
		CommitID: gh.Ptr(commitID),
		Event:    gh.Ptr(string(sub.Verdict)),
		Comments: draftComments,
	}

	// Only set Body if non-empty or event requires it (not APPROVE with empty body).
	if sub.Summary != "" || sub.Verdict != model.VerdictApprove {
		reviewReq.Body = gh.Ptr(sub.Summary)
	}

	review, resp, err := c.gh.PullRequests.CreateReview(ctx, key.Owner, key.Repo, key.Number, reviewReq)
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("PR was updated since you started reviewing; refresh and try again: %w", err)
		}
		return nil, fmt.Errorf("submitting review for %s: %w", key, err)
	}
	logRateLimit(resp, key.FullName()+"/create-review", 0, len(draftComments))

	reviewID := review.GetID()

	created, err := c.listReviewComments(ctx, key, reviewID)
	if err != nil {
		return nil, &model.ConsistencyError{Err: err}
	}

	mappings := matchSubmitted(sub.Comments, created)
	if len(mappings) != len(sub.Comments) {
		return nil, &model.ConsistencyError{
			Err: fmt.Errorf("review %d on %s: matched %d of %d submitted comments", reviewID, key, len(mappings), len(sub.Comments)),
		}
	}

	return &model.PublishResponse{
		ReviewID:        reviewID,
		UpdatedComments: mappings,
	}, nil
}

// listReviewComments fetches the comments attached to one review.
func (c *Client) listReviewComments(ctx context.Context, key model.SessionKey, reviewID int64) ([]*gh.PullRequestComment, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var all []*gh.PullRequestComment

	for {
		comments, resp, err := c.gh.PullRequests.ListReviewComments(ctx, key.Owner, key.Repo, key.Number, reviewID, opts)
		if err != nil {
			return nil, fmt.Errorf("listing comments of review %d on %s (page %d): %w", reviewID, key, opts.Page, err)
		}

		logRateLimit(resp, key.FullName()+"/review-comments", opts.Page, len(comments))
		all = append(all, comments...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// matchSubmitted pairs each submitted comment with the server comment created
// for it. The review endpoint returns no per-comment ids, so comments are
// matched on path, side and body, preferring the same line. Each server
// comment is used at most once.
func matchSubmitted(submitted []model.SubmittedComment, created []*gh.PullRequestComment) []model.CommentIDMapping {
	used := make(map[int64]bool, len(created))
	mappings := make([]model.CommentIDMapping, 0, len(submitted))

	for _, sc := range submitted {
		var match *gh.PullRequestComment
		for _, rc := range created {
			if used[rc.GetID()] || rc.GetPath() != sc.Path || rc.GetBody() != sc.Body {
				continue
			}
			if rc.GetSide() != "" && rc.GetSide() != string(sc.Side) {
				continue
			}
			if rc.GetLine() == sc.Line || rc.GetOriginalLine() == sc.Line {
				match = rc
				break
			}
			if match == nil {
				match = rc
			}
		}
		if match == nil {
			continue
		}

		used[match.GetID()] = true
		mappings = append(mappings, model.CommentIDMapping{
			LocalID:  sc.LocalID,
			ServerID: match.GetID(),
			URL:      match.GetHTMLURL(),
		})
	}

	return mappings
}
