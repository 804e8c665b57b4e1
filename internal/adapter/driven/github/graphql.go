package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// graphqlHTTPClient is the HTTP client used for GraphQL requests.
// It enforces a 30-second timeout as a safety net alongside context cancellation.
var graphqlHTTPClient = &http.Client{Timeout: 30 * time.Second}

const reviewThreadsQuery = `query($owner: String!, $repo: String!, $pr: Int!, $after: String) {
	repository(owner: $owner, name: $repo) {
		pullRequest(number: $pr) {
			reviewThreads(first: 100, after: $after) {
				pageInfo {
					hasNextPage
					endCursor
				}
				nodes {
					id
					isResolved
					comments(first: 100) {
						nodes {
							databaseId
						}
					}
				}
			}
		}
	}
}`

const resolveThreadMutation = `mutation($id: ID!) {
	resolveReviewThread(input: {threadId: $id}) {
		thread { isResolved }
	}
}`

// graphqlRequest is the JSON body sent to the GitHub GraphQL API.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// reviewThreadsResponse represents the expected shape of a GitHub GraphQL
// response for the review threads of a pull request.
type reviewThreadsResponse struct {
	Data struct {
		Repository struct {
			PullRequest struct {
				ReviewThreads struct {
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
					Nodes []struct {
						ID         string `json:"id"`
						IsResolved bool   `json:"isResolved"`
						Comments   struct {
							Nodes []struct {
								DatabaseID int64 `json:"databaseId"`
							} `json:"nodes"`
						} `json:"comments"`
					} `json:"nodes"`
				} `json:"reviewThreads"`
			} `json:"pullRequest"`
		} `json:"repository"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// graphqlMutationResponse represents the minimal response shape for GraphQL mutations.
// We only check for errors; the actual mutation payload is not inspected.
type graphqlMutationResponse struct {
	Errors []graphqlError `json:"errors"`
}

// ResolveThread marks the review thread containing the given comment as
// resolved. The thread's node id is looked up first because the REST API
// does not expose review threads.
func (c *Client) ResolveThread(ctx context.Context, key model.SessionKey, serverID int64) error {
	if c.token == "" {
		return fmt.Errorf("ResolveThread requires a GitHub token")
	}
	if err := key.Validate(); err != nil {
		return err
	}

	threadID, resolved, err := c.findThread(ctx, key, serverID)
	if err != nil {
		return err
	}
	if resolved {
		return nil
	}

	var gqlResp graphqlMutationResponse
	err = c.doGraphQL(ctx, graphqlRequest{
		Query:     resolveThreadMutation,
		Variables: map[string]any{"id": threadID},
	}, &gqlResp)
	if err != nil {
		return fmt.Errorf("resolving thread of comment %d on %s: %w", serverID, key, err)
	}

	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("resolving thread of comment %d on %s: %s", serverID, key, gqlResp.Errors[0].Message)
	}

	return nil
}

// findThread pages through the pull request's review threads until it finds
// the one holding serverID.
func (c *Client) findThread(ctx context.Context, key model.SessionKey, serverID int64) (string, bool, error) {
	var after any

	for {
		var gqlResp reviewThreadsResponse
		err := c.doGraphQL(ctx, graphqlRequest{
			Query: reviewThreadsQuery,
			Variables: map[string]any{
				"owner": key.Owner,
				"repo":  key.Repo,
				"pr":    key.Number,
				"after": after,
			},
		}, &gqlResp)
		if err != nil {
			return "", false, fmt.Errorf("querying review threads for %s: %w", key, err)
		}

		if len(gqlResp.Errors) > 0 {
			return "", false, fmt.Errorf("querying review threads for %s: %s", key, gqlResp.Errors[0].Message)
		}

		threads := gqlResp.Data.Repository.PullRequest.ReviewThreads
		for _, thread := range threads.Nodes {
			for _, comment := range thread.Comments.Nodes {
				if comment.DatabaseID == serverID {
					return thread.ID, thread.IsResolved, nil
				}
			}
		}

		if !threads.PageInfo.HasNextPage {
			break
		}
		after = threads.PageInfo.EndCursor
	}

	return "", false, fmt.Errorf("no review thread on %s contains comment %d", key, serverID)
}

// doGraphQL posts a GraphQL request and decodes the response into out.
func (c *Client) doGraphQL(ctx context.Context, reqBody graphqlRequest, out any) error {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling graphql request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating graphql request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("bearer %s", c.token))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := graphqlHTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("graphql request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql request: HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding graphql response: %w", err)
	}

	return nil
}
