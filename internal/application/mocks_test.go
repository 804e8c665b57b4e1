package application_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/reviewsync/internal/application"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// --- Mock implementations ---

type editCall struct {
	ServerID int64
	Body     string
}

// mockRemote implements application.RemoteBackend. Function fields override
// the default behavior; calls are recorded for assertions.
type mockRemote struct {
	mu sync.Mutex

	author   *model.Author
	comments []model.Comment

	listFn    func(ctx context.Context, key model.SessionKey) ([]model.Comment, error)
	editErr   error
	deleteErr error
	publishFn func(ctx context.Context, key model.SessionKey, sub model.ReviewSubmission) (*model.PublishResponse, error)
	hookErr   error

	listCalls   int
	edits       []editCall
	deletes     []int64
	submissions []model.ReviewSubmission
	resolved    []int64
	reactions   []string
}

var _ application.RemoteBackend = (*mockRemote)(nil)

func newMockRemote() *mockRemote {
	return &mockRemote{author: &model.Author{Username: "alice"}}
}

func (m *mockRemote) ListComments(ctx context.Context, key model.SessionKey) ([]model.Comment, error) {
	m.mu.Lock()
	m.listCalls++
	fn := m.listFn
	comments := append([]model.Comment(nil), m.comments...)
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, key)
	}
	return comments, nil
}

func (m *mockRemote) EditComment(_ context.Context, _ model.SessionKey, serverID int64, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return m.editErr
	}
	m.edits = append(m.edits, editCall{ServerID: serverID, Body: body})
	return nil
}

func (m *mockRemote) DeleteComment(_ context.Context, _ model.SessionKey, serverID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes = append(m.deletes, serverID)
	return nil
}

func (m *mockRemote) PublishReview(ctx context.Context, key model.SessionKey, sub model.ReviewSubmission) (*model.PublishResponse, error) {
	m.mu.Lock()
	m.submissions = append(m.submissions, sub)
	fn := m.publishFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, key, sub)
	}

	resp := &model.PublishResponse{ReviewID: 500}
	for i, c := range sub.Comments {
		serverID := int64(1000 + i)
		resp.UpdatedComments = append(resp.UpdatedComments, model.CommentIDMapping{
			LocalID:  c.LocalID,
			ServerID: serverID,
			URL:      fmt.Sprintf("https://example.test/r/%d", serverID),
		})
	}
	return resp, nil
}

func (m *mockRemote) CurrentAuthor(_ context.Context) (*model.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.author, nil
}

func (m *mockRemote) ResolveThread(_ context.Context, _ model.SessionKey, serverID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hookErr != nil {
		return m.hookErr
	}
	m.resolved = append(m.resolved, serverID)
	return nil
}

func (m *mockRemote) AddReaction(_ context.Context, _ model.SessionKey, _ int64, reaction string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hookErr != nil {
		return m.hookErr
	}
	m.reactions = append(m.reactions, reaction)
	return nil
}

func (m *mockRemote) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// mockPrefs is an in-memory PreferenceStore.
type mockPrefs struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newMockPrefs() *mockPrefs {
	return &mockPrefs{values: make(map[string]string)}
}

func (m *mockPrefs) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *mockPrefs) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockPrefs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// --- Helpers ---

var (
	testKey   = model.SessionKey{Owner: "octo", Repo: "widgets", Number: 7}
	testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	errRemote = errors.New("remote unavailable")
)

// testClock returns a clock that advances one second per call.
func testClock() func() time.Time {
	var mu sync.Mutex
	t := testEpoch
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

// sequentialIDs returns an id generator producing "local-1", "local-2", ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("local-%d", n)
	}
}

func testOptions() []application.StoreOption {
	return []application.StoreOption{
		application.WithClock(testClock()),
		application.WithIDGenerator(sequentialIDs()),
	}
}

func newTestStore(remote *mockRemote) *application.CommentStore {
	return application.NewCommentStore(testKey, remote, remote, testOptions()...)
}

func newTestSession(remote *mockRemote, prefs *mockPrefs) *application.ReviewSession {
	deps := application.SessionDeps{
		API:     remote,
		Authors: remote,
		Hooks:   remote,
		Options: testOptions(),
	}
	if prefs != nil {
		deps.Prefs = prefs
	}
	return application.NewReviewSession(testKey, deps)
}

var testAnchor = model.Anchor{Path: "pkg/server.go", Line: 42, Side: model.SideRight}

func publishedComment(serverID int64, anchor model.Anchor, body string) model.Comment {
	return model.Comment{
		ServerID:     serverID,
		Author:       model.Author{Username: "bob"},
		CreatedAt:    testEpoch.Add(-time.Hour).Add(time.Duration(serverID) * time.Second),
		UpdatedAt:    testEpoch.Add(-time.Hour),
		URL:          fmt.Sprintf("https://example.test/r/%d", serverID),
		Body:         body,
		Path:         anchor.Path,
		Line:         anchor.Line,
		Side:         anchor.Side,
		State:        model.CommentStatePublished,
		WasPublished: true,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
