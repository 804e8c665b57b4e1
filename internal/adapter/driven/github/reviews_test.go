package github_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSubmission() model.ReviewSubmission {
	return model.ReviewSubmission{
		Verdict: model.VerdictRequestChanges,
		Summary: "A few things",
		Comments: []model.SubmittedComment{
			{LocalID: "l1", Path: "main.go", Line: 10, Side: model.SideRight, Body: "same"},
			{LocalID: "l2", Path: "main.go", Line: 20, Side: model.SideRight, Body: "same"},
			{LocalID: "l3", Path: "util.go", Line: 3, Side: model.SideLeft, Body: "why removed?"},
		},
	}
}

func TestPublishReview_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/widgets/pulls/7", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"number": 7, "head": map[string]any{"sha": "abc123"}})
	})
	mux.HandleFunc("POST /repos/octo/widgets/pulls/7/reviews", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CommitID string `json:"commit_id"`
			Body     string `json:"body"`
			Event    string `json:"event"`
			Comments []struct {
				Path string `json:"path"`
				Line int    `json:"line"`
				Side string `json:"side"`
				Body string `json:"body"`
			} `json:"comments"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "abc123", req.CommitID)
		assert.Equal(t, "REQUEST_CHANGES", req.Event)
		assert.Equal(t, "A few things", req.Body)
		require.Len(t, req.Comments, 3)
		assert.Equal(t, "LEFT", req.Comments[2].Side)

		writeJSON(t, w, map[string]any{"id": 900, "state": "CHANGES_REQUESTED"})
	})
	mux.HandleFunc("GET /repos/octo/widgets/pulls/7/reviews/900/comments", func(w http.ResponseWriter, _ *http.Request) {
		// Returned out of order; matching must not rely on position.
		writeJSON(t, w, []commentJSON{
			{ID: 3, Path: "util.go", Line: intPtr(3), Side: "LEFT", Body: "why removed?", HTMLURL: "https://gh.test/3"},
			{ID: 2, Path: "main.go", Line: intPtr(20), Side: "RIGHT", Body: "same", HTMLURL: "https://gh.test/2"},
			{ID: 1, Path: "main.go", Line: intPtr(10), Side: "RIGHT", Body: "same", HTMLURL: "https://gh.test/1"},
		})
	})

	client, _ := newTestClient(t, mux)

	resp, err := client.PublishReview(context.Background(), testKey, testSubmission())
	require.NoError(t, err)
	assert.Equal(t, int64(900), resp.ReviewID)
	assert.Equal(t, []model.CommentIDMapping{
		{LocalID: "l1", ServerID: 1, URL: "https://gh.test/1"},
		{LocalID: "l2", ServerID: 2, URL: "https://gh.test/2"},
		{LocalID: "l3", ServerID: 3, URL: "https://gh.test/3"},
	}, resp.UpdatedComments)
}

func TestPublishReview_ApproveWithoutBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/octo/widgets/pulls/7/reviews", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, hasBody := req["body"]
		assert.False(t, hasBody)
		assert.Equal(t, "sha-given", req["commit_id"])
		writeJSON(t, w, map[string]any{"id": 1})
	})
	mux.HandleFunc("GET /repos/octo/widgets/pulls/7/reviews/1/comments", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, []commentJSON{{ID: 5, Path: "a.go", Line: intPtr(1), Side: "RIGHT", Body: "ok"}})
	})
	client, _ := newTestClient(t, mux)

	resp, err := client.PublishReview(context.Background(), testKey, model.ReviewSubmission{
		Verdict:  model.VerdictApprove,
		CommitID: "sha-given",
		Comments: []model.SubmittedComment{{LocalID: "x", Path: "a.go", Line: 1, Side: model.SideRight, Body: "ok"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.UpdatedComments, 1)
	assert.Equal(t, int64(5), resp.UpdatedComments[0].ServerID)
}

func TestPublishReview_StaleCommit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/octo/widgets/pulls/7/reviews", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Unprocessable Entity"}`))
	})
	client, _ := newTestClient(t, mux)

	sub := testSubmission()
	sub.CommitID = "stale"
	_, err := client.PublishReview(context.Background(), testKey, sub)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh and try again")

	var consistencyErr *model.ConsistencyError
	assert.NotErrorAs(t, err, &consistencyErr)
}

func TestPublishReview_FetchAfterPublishFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/octo/widgets/pulls/7/reviews", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"id": 900})
	})
	mux.HandleFunc("GET /repos/octo/widgets/pulls/7/reviews/900/comments", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client, _ := newTestClient(t, mux)

	sub := testSubmission()
	sub.CommitID = "abc"
	_, err := client.PublishReview(context.Background(), testKey, sub)

	var consistencyErr *model.ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Contains(t, err.Error(), "inline comments fetch after publish")
}

func TestPublishReview_UnmatchedComments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/octo/widgets/pulls/7/reviews", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"id": 900})
	})
	mux.HandleFunc("GET /repos/octo/widgets/pulls/7/reviews/900/comments", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, []commentJSON{{ID: 1, Path: "main.go", Line: intPtr(10), Side: "RIGHT", Body: "same"}})
	})
	client, _ := newTestClient(t, mux)

	sub := testSubmission()
	sub.CommitID = "abc"
	_, err := client.PublishReview(context.Background(), testKey, sub)

	var consistencyErr *model.ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Contains(t, err.Error(), "matched 1 of 3")
}
